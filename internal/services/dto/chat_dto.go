package dto

import "lumen_backend/internal/models"

type SendMessageRequest struct {
	ChatID        string   `json:"chatId"`
	Message       string   `json:"message" binding:"required"`
	AttachmentIDs []string `json:"attachmentIds"`
}

// SendMessageInput is the resolved input for the streaming proxy.
type SendMessageInput struct {
	ChatID        string
	Message       string
	AttachmentIDs []string
	UserID        string
}

type CreateChatRoomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type ChatRoomsPage struct {
	ChatRooms   []models.Chat `json:"chatRooms"`
	HasNextPage bool          `json:"hasNextPage"`
	NextOffset  *int          `json:"nextOffset"`
}

type ChatMessagesPage struct {
	Messages    []models.ChatMessage `json:"messages"`
	HasNextPage bool                 `json:"hasNextPage"`
	NextOffset  *int                 `json:"nextOffset"`
}
