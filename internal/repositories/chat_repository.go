package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"lumen_backend/internal/models"
)

// ChatRepository persists chat rooms, messages and attachment links.
type ChatRepository interface {
	CreateChatRoom(ctx context.Context, chat *models.Chat) error
	GetChatRoomByID(ctx context.Context, id string) (*models.Chat, error)
	GetChatRoomsByUserID(ctx context.Context, userID string, offset, limit int) ([]models.Chat, error)
	DeleteChatRoomByID(ctx context.Context, id string) error
	DeleteAllChatRoomsByUserID(ctx context.Context, userID string) error

	CreateChatMessage(ctx context.Context, message *models.ChatMessage) error
	// GetChatMessagesByChatID pages messages newest-first.
	GetChatMessagesByChatID(ctx context.Context, chatID string, offset, limit int) ([]models.ChatMessage, error)
	// GetRecentMessages returns the most recent n messages in chronological
	// order, the shape the model context needs.
	GetRecentMessages(ctx context.Context, chatID string, n int) ([]models.ChatMessage, error)

	CreateMessageAttachment(ctx context.Context, attachment *models.MessageAttachment) error
}

type ChatRepositoryImpl struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &ChatRepositoryImpl{db: db}
}

func (r *ChatRepositoryImpl) CreateChatRoom(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *ChatRepositoryImpl) GetChatRoomByID(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).First(&chat, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepositoryImpl) GetChatRoomsByUserID(ctx context.Context, userID string, offset, limit int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&chats).Error
	return chats, err
}

func (r *ChatRepositoryImpl) DeleteChatRoomByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Chat{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (r *ChatRepositoryImpl) DeleteAllChatRoomsByUserID(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Chat{}).Error
}

func (r *ChatRepositoryImpl) CreateChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return err
	}
	// Bump the room so recently active chats sort first.
	return r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", message.ChatID).
		Update("updated_at", message.CreatedAt).Error
}

func (r *ChatRepositoryImpl) GetChatMessagesByChatID(ctx context.Context, chatID string, offset, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Attachments").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *ChatRepositoryImpl) GetRecentMessages(ctx context.Context, chatID string, n int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ChatRepositoryImpl) CreateMessageAttachment(ctx context.Context, attachment *models.MessageAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}
