package models

type ChatMessageRole string

const (
	RoleUser      ChatMessageRole = "user"
	RoleAssistant ChatMessageRole = "assistant"
)

type Chat struct {
	BaseModel
	UserID string `gorm:"index;not null" json:"userId"`
	Name   string `gorm:"not null" json:"name"`

	Messages []ChatMessage `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"-"`
}

type ChatMessage struct {
	BaseModel
	ChatID  string          `gorm:"index;not null" json:"chatId"`
	UserID  string          `gorm:"index;not null" json:"userId"`
	Content string          `gorm:"type:text" json:"content"`
	Role    ChatMessageRole `gorm:"type:varchar(10);not null" json:"role"`

	Attachments []MessageAttachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// MessageAttachment links a message to a previously uploaded file. The
// underlying FileUpload is shared by reference and not owned by the message.
type MessageAttachment struct {
	BaseModel
	MessageID    string `gorm:"index;not null" json:"messageId"`
	FileUploadID string `gorm:"index;not null" json:"fileUploadId"`

	FileUpload *FileUpload `gorm:"foreignKey:FileUploadID" json:"fileUpload,omitempty"`
}
