package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen_backend/internal/llm"
	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
	"lumen_backend/internal/services/dto"
	"lumen_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// fakeChatRepo keeps chats and messages in memory, messages in insertion
// order per chat.
type fakeChatRepo struct {
	mu          sync.Mutex
	chats       map[string]*models.Chat
	messages    map[string][]models.ChatMessage
	attachments []models.MessageAttachment
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:    map[string]*models.Chat{},
		messages: map[string][]models.ChatMessage{},
	}
}

func (r *fakeChatRepo) CreateChatRoom(ctx context.Context, chat *models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	cp := *chat
	r.chats[chat.ID] = &cp
	return nil
}

func (r *fakeChatRepo) GetChatRoomByID(ctx context.Context, id string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[id]
	if !ok {
		return nil, repositories.ErrChatNotFound
	}
	cp := *chat
	return &cp, nil
}

func (r *fakeChatRepo) GetChatRoomsByUserID(ctx context.Context, userID string, offset, limit int) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, chat := range r.chats {
		if chat.UserID == userID {
			out = append(out, *chat)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChatRepo) DeleteChatRoomByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[id]; !ok {
		return repositories.ErrChatNotFound
	}
	delete(r.chats, id)
	delete(r.messages, id)
	return nil
}

func (r *fakeChatRepo) DeleteAllChatRoomsByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, chat := range r.chats {
		if chat.UserID == userID {
			delete(r.chats, id)
			delete(r.messages, id)
		}
	}
	return nil
}

func (r *fakeChatRepo) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	r.messages[message.ChatID] = append(r.messages[message.ChatID], *message)
	return nil
}

func (r *fakeChatRepo) GetChatMessagesByChatID(ctx context.Context, chatID string, offset, limit int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[chatID]
	// Newest first, as the gorm implementation orders.
	out := make([]models.ChatMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeChatRepo) GetRecentMessages(ctx context.Context, chatID string, n int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[chatID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *fakeChatRepo) CreateMessageAttachment(ctx context.Context, attachment *models.MessageAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	r.attachments = append(r.attachments, *attachment)
	return nil
}

func (r *fakeChatRepo) messagesFor(chatID string) []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatMessage, len(r.messages[chatID]))
	copy(out, r.messages[chatID])
	return out
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads map[string]*models.FileUpload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: map[string]*models.FileUpload{}}
}

func (r *fakeUploadRepo) Create(ctx context.Context, upload *models.FileUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	cp := *upload
	r.uploads[upload.ID] = &cp
	return nil
}

func (r *fakeUploadRepo) GetByID(ctx context.Context, id string) (*models.FileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[id]
	if !ok {
		return nil, repositories.ErrUploadNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUploadRepo) GetByIDs(ctx context.Context, ids []string) ([]models.FileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileUpload
	for _, id := range ids {
		if u, ok := r.uploads[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUploadRepo) GetByUserID(ctx context.Context, userID string, offset, limit int) ([]models.FileUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileUpload
	for _, u := range r.uploads {
		if u.UserID == userID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUploadRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uploads[id]; !ok {
		return repositories.ErrUploadNotFound
	}
	delete(r.uploads, id)
	return nil
}

// fakeObjectStore is an in-memory storage.Storage.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Save(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeObjectStore) GetURL(ctx context.Context, key string) (string, error) {
	return "/files/" + key, nil
}

// fakeLLMClient replays scripted deltas and records the outbound request.
type fakeLLMClient struct {
	mu       sync.Mutex
	deltas   []string
	err      error
	received []llm.Message
	stream   *fakeLLMStream
}

type fakeLLMStream struct {
	ctx     context.Context
	deltas  []string
	err     error
	pos     int
	closed  bool
	endless bool
}

func (c *fakeLLMClient) StreamChatCompletion(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append([]llm.Message(nil), messages...)
	c.stream = &fakeLLMStream{ctx: ctx, deltas: c.deltas, err: c.err, endless: c.endless()}
	return c.stream, nil
}

func (c *fakeLLMClient) endless() bool { return c.deltas == nil && c.err == nil }

func (s *fakeLLMStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.endless {
		return "tick ", nil
	}
	if s.pos < len(s.deltas) {
		delta := s.deltas[s.pos]
		s.pos++
		return delta, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *fakeLLMStream) Close() error {
	s.closed = true
	return nil
}

type recordedEvent struct {
	Event string
	Data  interface{}
}

// recordingEmitter captures emitted events. cancelAfter, when positive,
// cancels the attached context after that many content events to simulate a
// client disconnect.
type recordingEmitter struct {
	mu           sync.Mutex
	events       []recordedEvent
	contentCount int
	cancelAfter  int
	cancel       context.CancelFunc
	closed       bool
}

func (e *recordingEmitter) Emit(event string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.events = append(e.events, recordedEvent{Event: event, Data: data})
	if event == "content" {
		e.contentCount++
		if e.cancelAfter > 0 && e.contentCount >= e.cancelAfter {
			e.closed = true
			e.cancel()
		}
	}
	return nil
}

func (e *recordingEmitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *recordingEmitter) eventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.events))
	for i, ev := range e.events {
		names[i] = ev.Event
	}
	return names
}

type chatFixture struct {
	svc        ChatService
	chatRepo   *fakeChatRepo
	uploadRepo *fakeUploadRepo
	store      *fakeObjectStore
	client     *fakeLLMClient
}

func newChatFixture(t *testing.T, deltas []string) *chatFixture {
	t.Helper()
	chatRepo := newFakeChatRepo()
	uploadRepo := newFakeUploadRepo()
	store := newFakeObjectStore()
	client := &fakeLLMClient{deltas: deltas}
	return &chatFixture{
		svc:        NewChatService(chatRepo, uploadRepo, client, store),
		chatRepo:   chatRepo,
		uploadRepo: uploadRepo,
		store:      store,
		client:     client,
	}
}

func TestStreamCreatesRoomAndPersistsExchange(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"Hello", ", ", "world"})
	emitter := &recordingEmitter{}

	longMessage := strings.Repeat("x", 40)
	f.svc.SendMessageAndStream(context.Background(), dto.SendMessageInput{
		Message: longMessage,
		UserID:  "user-1",
	}, emitter)

	require.Equal(t, []string{"chatCreated", "content", "content", "content", "done"}, emitter.eventNames())

	created, ok := emitter.events[0].Data.(chatCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("x", 30)+"...", created.ChatName)

	msgs := f.chatRepo.messagesFor(created.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, longMessage, msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello, world", msgs[1].Content)
}

func TestStreamShortNameIsNotTruncated(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"ok"})
	emitter := &recordingEmitter{}

	f.svc.SendMessageAndStream(context.Background(), dto.SendMessageInput{
		Message: "short prompt",
		UserID:  "user-1",
	}, emitter)

	created := emitter.events[0].Data.(chatCreatedEvent)
	assert.Equal(t, "short prompt", created.ChatName)
}

func TestStreamSendsBoundedHistory(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"answer"})
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "user-1", "history")
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, f.chatRepo.CreateChatMessage(ctx, &models.ChatMessage{
			ChatID:  chat.ID,
			UserID:  "user-1",
			Role:    role,
			Content: "older",
		}))
	}

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		ChatID:  chat.ID,
		Message: "latest question",
		UserID:  "user-1",
	}, emitter)

	require.Equal(t, []string{"content", "done"}, emitter.eventNames())

	// Ten prior messages plus the new one, which appears exactly once.
	require.Len(t, f.client.received, 11)
	last := f.client.received[len(f.client.received)-1]
	assert.Equal(t, string(models.RoleUser), last.Role)
	assert.Equal(t, "latest question", last.Content)
	for _, m := range f.client.received[:10] {
		assert.Equal(t, "older", m.Content)
	}
}

func TestStreamRejectsForeignRoom(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"never"})
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "owner", "private")
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		ChatID:  chat.ID,
		Message: "let me in",
		UserID:  "intruder",
	}, emitter)

	require.Equal(t, []string{"error"}, emitter.eventNames())
	errEvent := emitter.events[0].Data.(errorEvent)
	assert.Equal(t, "You don't have access to this chat room", errEvent.Message)
	assert.Empty(t, f.chatRepo.messagesFor(chat.ID))
}

func TestStreamPersistsEmptyAssistantResponse(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{})
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "user-1", "quiet")
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		ChatID:  chat.ID,
		Message: "anything there?",
		UserID:  "user-1",
	}, emitter)

	require.Equal(t, []string{"done"}, emitter.eventNames())

	msgs := f.chatRepo.messagesFor(chat.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "", msgs[1].Content)
}

func TestStreamStopsOnClientDisconnect(t *testing.T) {
	t.Parallel()
	// nil deltas make the fake stream endless until the context dies.
	f := newChatFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat, err := f.svc.CreateChatRoom(ctx, "user-1", "live")
	require.NoError(t, err)

	emitter := &recordingEmitter{cancelAfter: 3, cancel: cancel}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		ChatID:  chat.ID,
		Message: "stream forever",
		UserID:  "user-1",
	}, emitter)

	// Exactly the forwarded content events, then silence: no done, no error.
	assert.Equal(t, []string{"content", "content", "content"}, emitter.eventNames())
	assert.True(t, f.client.stream.closed)

	// The user message is persisted, the aborted response is not.
	msgs := f.chatRepo.messagesFor(chat.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestStreamUpstreamErrorEmitsErrorEvent(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, nil)
	f.client.deltas = []string{"partial"}
	f.client.err = io.ErrUnexpectedEOF
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "user-1", "flaky")
	require.NoError(t, err)

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		ChatID:  chat.ID,
		Message: "hello",
		UserID:  "user-1",
	}, emitter)

	require.Equal(t, []string{"content", "error"}, emitter.eventNames())
	errEvent := emitter.events[1].Data.(errorEvent)
	assert.Equal(t, "An error occurred during streaming", errEvent.Message)

	// No assistant message for a failed stream.
	msgs := f.chatRepo.messagesFor(chat.ID)
	require.Len(t, msgs, 1)
}

func TestStreamBuildsMultiPartAttachmentContent(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"looks good"})
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, "img-key", strings.NewReader("png-bytes"), "image/png"))
	require.NoError(t, f.store.Save(ctx, "doc-key", strings.NewReader("doc-bytes"), "text/plain"))

	image := &models.FileUpload{UserID: "user-1", Key: "img-key", FileName: "photo.png", MimeType: "image/png"}
	doc := &models.FileUpload{UserID: "user-1", Key: "doc-key", FileName: "notes.txt", MimeType: "text/plain"}
	require.NoError(t, f.uploadRepo.Create(ctx, image))
	require.NoError(t, f.uploadRepo.Create(ctx, doc))

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		Message:       "what do you see?",
		AttachmentIDs: []string{image.ID, doc.ID},
		UserID:        "user-1",
	}, emitter)

	names := emitter.eventNames()
	require.Equal(t, "done", names[len(names)-1])

	last := f.client.received[len(f.client.received)-1]
	require.Len(t, last.Parts, 3)
	assert.Equal(t, llm.PartText, last.Parts[0].Type)
	assert.Equal(t, "what do you see?", last.Parts[0].Text)
	assert.Equal(t, llm.PartImage, last.Parts[1].Type)
	assert.True(t, strings.HasPrefix(last.Parts[1].ImageURL, "data:image/png;base64,"))
	assert.Equal(t, llm.PartText, last.Parts[2].Type)
	assert.Contains(t, last.Parts[2].Text, "notes.txt")

	created := emitter.events[0].Data.(chatCreatedEvent)
	msgs := f.chatRepo.messagesFor(created.ChatID)
	require.Len(t, msgs, 2)

	f.chatRepo.mu.Lock()
	attachments := append([]models.MessageAttachment(nil), f.chatRepo.attachments...)
	f.chatRepo.mu.Unlock()
	require.Len(t, attachments, 2)
	assert.Equal(t, image.ID, attachments[0].FileUploadID)
	assert.Equal(t, doc.ID, attachments[1].FileUploadID)
	assert.Equal(t, msgs[0].ID, attachments[0].MessageID)
}

func TestStreamRejectsForeignAttachment(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, []string{"never"})
	ctx := context.Background()

	other := &models.FileUpload{UserID: "someone-else", Key: "k", FileName: "f", MimeType: "text/plain"}
	require.NoError(t, f.uploadRepo.Create(ctx, other))

	emitter := &recordingEmitter{}
	f.svc.SendMessageAndStream(ctx, dto.SendMessageInput{
		Message:       "use this",
		AttachmentIDs: []string{other.ID},
		UserID:        "user-1",
	}, emitter)

	names := emitter.eventNames()
	require.Equal(t, "error", names[len(names)-1])
	errEvent := emitter.events[len(emitter.events)-1].Data.(errorEvent)
	assert.Equal(t, "You don't have access to this attachment", errEvent.Message)
}

func TestGetUserChatRoomsPagination(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateChatRoom(ctx, "user-1", "room")
		require.NoError(t, err)
	}

	page, err := f.svc.GetUserChatRooms(ctx, "user-1", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page.ChatRooms, 2)
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 2, *page.NextOffset)

	page, err = f.svc.GetUserChatRooms(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.ChatRooms, 1)
	assert.False(t, page.HasNextPage)
	assert.Nil(t, page.NextOffset)
}

func TestGetChatMessagesChecksOwnership(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, nil)
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "owner", "mine")
	require.NoError(t, err)

	_, err = f.svc.GetChatMessages(ctx, "intruder", chat.ID, 0, 10)
	requireAppError(t, err, apperrors.CodeForbidden, "You don't have access to this chat room")

	_, err = f.svc.GetChatMessages(ctx, "owner", "missing-id", 0, 10)
	requireAppError(t, err, apperrors.CodeNotFound, "Chat room not found")
}

func TestDeleteChatRoom(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, nil)
	ctx := context.Background()

	chat, err := f.svc.CreateChatRoom(ctx, "owner", "mine")
	require.NoError(t, err)

	err = f.svc.DeleteChatRoom(ctx, "intruder", chat.ID)
	requireAppError(t, err, apperrors.CodeForbidden, "You don't have permission to delete this chat room")

	require.NoError(t, f.svc.DeleteChatRoom(ctx, "owner", chat.ID))
	_, err = f.svc.GetChatMessages(ctx, "owner", chat.ID, 0, 10)
	requireAppError(t, err, apperrors.CodeNotFound, "Chat room not found")
}
