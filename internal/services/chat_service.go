package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"lumen_backend/internal/llm"
	"lumen_backend/internal/logger"
	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
	"lumen_backend/internal/services/dto"
	"lumen_backend/internal/storage"
	"lumen_backend/pkg/apperrors"
)

// Context window sent to the model: the most recent N prior messages.
const chatHistoryLimit = 10

// Chat names derived from the first message are cut at this many runes.
const chatNameMaxLen = 30

// StreamEmitter is the outbound half of an SSE response. Closed reports
// whether the client connection has gone away; Emit after Closed is a no-op
// at the transport level but callers should stop emitting.
type StreamEmitter interface {
	Emit(event string, data interface{}) error
	Closed() bool
}

// SSE event payloads.
type chatCreatedEvent struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName"`
}

type contentEvent struct {
	Content string `json:"content"`
}

type errorEvent struct {
	Message string `json:"message"`
}

type ChatService interface {
	// SendMessageAndStream runs the full proxy sequence against the emitter.
	// All failures are reported on the stream; nothing is returned.
	SendMessageAndStream(ctx context.Context, in dto.SendMessageInput, emit StreamEmitter)

	CreateChatRoom(ctx context.Context, userID, name string) (*models.Chat, error)
	DeleteChatRoom(ctx context.Context, userID, chatID string) error
	DeleteAllChatRooms(ctx context.Context, userID string) error
	GetUserChatRooms(ctx context.Context, userID string, offset, limit int) (*dto.ChatRoomsPage, error)
	GetChatMessages(ctx context.Context, userID, chatID string, offset, limit int) (*dto.ChatMessagesPage, error)
}

type ChatServiceImpl struct {
	chatRepo   repositories.ChatRepository
	uploadRepo repositories.UploadRepository
	llmClient  llm.Client
	store      storage.Storage
}

func NewChatService(
	chatRepo repositories.ChatRepository,
	uploadRepo repositories.UploadRepository,
	llmClient llm.Client,
	store storage.Storage,
) ChatService {
	return &ChatServiceImpl{
		chatRepo:   chatRepo,
		uploadRepo: uploadRepo,
		llmClient:  llmClient,
		store:      store,
	}
}

// SendMessageAndStream bridges the client to the model stream. The caller's
// ctx is wired into the upstream request, so a client disconnect cancels the
// provider call; nothing here blocks after the client goes away.
func (s *ChatServiceImpl) SendMessageAndStream(ctx context.Context, in dto.SendMessageInput, emit StreamEmitter) {
	if err := s.streamCompletion(ctx, in, emit); err != nil {
		logger.CtxWithError(ctx, "error streaming completion", err, "chat_id", in.ChatID)

		if !emit.Closed() {
			msg := "An error occurred during streaming"
			if appErr, ok := apperrors.AsAppError(err); ok {
				msg = appErr.Message
			}
			_ = emit.Emit("error", errorEvent{Message: msg})
		}
	}
}

func (s *ChatServiceImpl) streamCompletion(ctx context.Context, in dto.SendMessageInput, emit StreamEmitter) error {
	chatID := in.ChatID

	if chatID == "" {
		chat := &models.Chat{
			UserID: in.UserID,
			Name:   deriveChatName(in.Message),
		}
		if err := s.chatRepo.CreateChatRoom(ctx, chat); err != nil {
			return err
		}
		chatID = chat.ID

		if err := emit.Emit("chatCreated", chatCreatedEvent{ChatID: chat.ID, ChatName: chat.Name}); err != nil {
			return err
		}
	} else {
		chat, err := s.chatRepo.GetChatRoomByID(ctx, chatID)
		if err != nil {
			if apperrors.Is(err, repositories.ErrChatNotFound) {
				return apperrors.NewNotFoundError("chat", "Chat room not found")
			}
			return err
		}
		if chat.UserID != in.UserID {
			return apperrors.NewForbiddenError("You don't have access to this chat room")
		}
	}

	userMessage := &models.ChatMessage{
		ChatID:  chatID,
		UserID:  in.UserID,
		Content: in.Message,
		Role:    models.RoleUser,
	}
	if err := s.chatRepo.CreateChatMessage(ctx, userMessage); err != nil {
		return err
	}

	var attachments []models.FileUpload
	if len(in.AttachmentIDs) > 0 {
		var err error
		attachments, err = s.resolveAttachments(ctx, in, userMessage.ID)
		if err != nil {
			return err
		}
	}

	outbound, err := s.buildModelRequest(ctx, chatID, userMessage, attachments)
	if err != nil {
		return err
	}

	stream, err := s.llmClient.StreamChatCompletion(ctx, outbound)
	if err != nil {
		return err
	}
	defer stream.Close()

	var assistantResponse string
	for {
		delta, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				// Client disconnected; the upstream request is already
				// aborted through ctx. Nothing more to do.
				return nil
			}
			return err
		}

		if delta == "" {
			continue
		}
		assistantResponse += delta

		if emit.Closed() {
			// Stop forwarding but keep draining: ctx cancellation tears
			// down the upstream promptly on the next Recv.
			continue
		}
		if err := emit.Emit("content", contentEvent{Content: delta}); err != nil {
			return err
		}
	}

	// An empty model response is persisted too: every exchange keeps its
	// user/assistant message pair.
	if err := s.chatRepo.CreateChatMessage(ctx, &models.ChatMessage{
		ChatID:  chatID,
		UserID:  in.UserID,
		Content: assistantResponse,
		Role:    models.RoleAssistant,
	}); err != nil {
		return err
	}

	return emit.Emit("done", struct{}{})
}

// resolveAttachments loads the referenced uploads, checks ownership, links
// them to the message and returns them in the order the client sent them.
// Any missing or foreign attachment fails the whole request.
func (s *ChatServiceImpl) resolveAttachments(ctx context.Context, in dto.SendMessageInput, messageID string) ([]models.FileUpload, error) {
	uploads, err := s.uploadRepo.GetByIDs(ctx, in.AttachmentIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.FileUpload, len(uploads))
	for _, u := range uploads {
		byID[u.ID] = u
	}

	ordered := make([]models.FileUpload, 0, len(in.AttachmentIDs))
	for _, id := range in.AttachmentIDs {
		upload, ok := byID[id]
		if !ok {
			return nil, apperrors.NewNotFoundError("upload", "Attachment not found")
		}
		if upload.UserID != in.UserID {
			return nil, apperrors.NewForbiddenError("You don't have access to this attachment")
		}
		ordered = append(ordered, upload)
	}

	for _, upload := range ordered {
		if err := s.chatRepo.CreateMessageAttachment(ctx, &models.MessageAttachment{
			MessageID:    messageID,
			FileUploadID: upload.ID,
		}); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// buildModelRequest assembles the history plus the new user message. The
// just-persisted user message is excluded from the history query so it
// appears exactly once, as the final (possibly multi-part) entry.
func (s *ChatServiceImpl) buildModelRequest(ctx context.Context, chatID string, userMessage *models.ChatMessage, attachments []models.FileUpload) ([]llm.Message, error) {
	recent, err := s.chatRepo.GetRecentMessages(ctx, chatID, chatHistoryLimit+1)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID == userMessage.ID {
			continue
		}
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	if len(history) > chatHistoryLimit {
		history = history[len(history)-chatHistoryLimit:]
	}

	if len(attachments) == 0 {
		return append(history, llm.Message{Role: string(models.RoleUser), Content: userMessage.Content}), nil
	}

	parts := []llm.ContentPart{{Type: llm.PartText, Text: userMessage.Content}}
	for _, upload := range attachments {
		dataURL, err := storage.FetchAsDataURL(ctx, s.store, upload.Key, upload.MimeType)
		if err != nil {
			// One broken attachment aborts the whole request rather than
			// silently dropping it.
			return nil, err
		}

		if upload.IsImage() {
			parts = append(parts, llm.ContentPart{Type: llm.PartImage, ImageURL: dataURL})
		} else {
			// The provider API has no generic file part; inline the
			// encoded file as text with its name and type.
			parts = append(parts, llm.ContentPart{
				Type: llm.PartText,
				Text: fmt.Sprintf("Attached file %q (%s): %s", upload.FileName, upload.MimeType, dataURL),
			})
		}
	}

	return append(history, llm.Message{Role: string(models.RoleUser), Parts: parts}), nil
}

func deriveChatName(message string) string {
	runes := []rune(message)
	if len(runes) <= chatNameMaxLen {
		return message
	}
	return string(runes[:chatNameMaxLen]) + "..."
}

// --- Chat room CRUD ---

func (s *ChatServiceImpl) CreateChatRoom(ctx context.Context, userID, name string) (*models.Chat, error) {
	chat := &models.Chat{
		UserID: userID,
		Name:   name,
	}
	if err := s.chatRepo.CreateChatRoom(ctx, chat); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return chat, nil
}

func (s *ChatServiceImpl) DeleteChatRoom(ctx context.Context, userID, chatID string) error {
	chat, err := s.chatRepo.GetChatRoomByID(ctx, chatID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrChatNotFound) {
			return apperrors.NewNotFoundError("chat", "Chat room not found")
		}
		return apperrors.InternalError(err)
	}
	if chat.UserID != userID {
		return apperrors.NewForbiddenError("You don't have permission to delete this chat room")
	}

	if err := s.chatRepo.DeleteChatRoomByID(ctx, chatID); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *ChatServiceImpl) DeleteAllChatRooms(ctx context.Context, userID string) error {
	if err := s.chatRepo.DeleteAllChatRoomsByUserID(ctx, userID); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *ChatServiceImpl) GetUserChatRooms(ctx context.Context, userID string, offset, limit int) (*dto.ChatRoomsPage, error) {
	// Fetch one extra row to detect the next page.
	chats, err := s.chatRepo.GetChatRoomsByUserID(ctx, userID, offset, limit+1)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	page := &dto.ChatRoomsPage{ChatRooms: chats}
	if len(chats) > limit {
		page.ChatRooms = chats[:limit]
		page.HasNextPage = true
		next := offset + limit
		page.NextOffset = &next
	}
	return page, nil
}

func (s *ChatServiceImpl) GetChatMessages(ctx context.Context, userID, chatID string, offset, limit int) (*dto.ChatMessagesPage, error) {
	chat, err := s.chatRepo.GetChatRoomByID(ctx, chatID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrChatNotFound) {
			return nil, apperrors.NewNotFoundError("chat", "Chat room not found")
		}
		return nil, apperrors.InternalError(err)
	}
	if chat.UserID != userID {
		return nil, apperrors.NewForbiddenError("You don't have access to this chat room")
	}

	messages, err := s.chatRepo.GetChatMessagesByChatID(ctx, chatID, offset, limit+1)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	page := &dto.ChatMessagesPage{Messages: messages}
	if len(messages) > limit {
		page.Messages = messages[:limit]
		page.HasNextPage = true
		next := offset + limit
		page.NextOffset = &next
	}
	return page, nil
}
