package models

import "time"

type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

type User struct {
	BaseModel
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
	// Nullable: OAuth-only accounts carry no password hash.
	PasswordHash *string `json:"-"`
	// Null means unverified; set exactly once by the verification flow.
	EmailVerified *time.Time `json:"emailVerified"`
	Plan          PlanTier   `gorm:"type:varchar(20);default:'free'" json:"plan"`

	// Relations. Deleting a user cascades to everything it owns.
	Settings *UserSettings `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Chats    []Chat        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Uploads  []FileUpload  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (u *User) IsVerified() bool {
	return u.EmailVerified != nil
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

type UserSettings struct {
	BaseModel
	UserID             string `gorm:"uniqueIndex;not null" json:"userId"`
	Theme              Theme  `gorm:"type:varchar(10);default:'system'" json:"theme"`
	IsTwoFactorEnabled bool   `gorm:"default:false" json:"isTwoFactorEnabled"`
}
