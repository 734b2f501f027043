package models

type FileUpload struct {
	BaseModel
	UserID   string `gorm:"index;not null" json:"userId"`
	Key      string `gorm:"uniqueIndex;not null" json:"key"`
	FileName string `gorm:"not null" json:"fileName"`
	MimeType string `gorm:"not null" json:"mimeType"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

func (f *FileUpload) IsImage() bool {
	return len(f.MimeType) >= 6 && f.MimeType[:6] == "image/"
}
