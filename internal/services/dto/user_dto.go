package dto

type ProfileResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Plan               string `json:"plan"`
	EmailVerified      bool   `json:"emailVerified"`
	Theme              string `json:"theme"`
	IsTwoFactorEnabled bool   `json:"isTwoFactorEnabled"`
}

type UpdateSettingsRequest struct {
	Theme              *string `json:"theme" binding:"omitempty,oneof=light dark system"`
	IsTwoFactorEnabled *bool   `json:"isTwoFactorEnabled"`
}
