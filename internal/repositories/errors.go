package repositories

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrTokenNotFound        = errors.New("token not found")
	ErrConfirmationNotFound = errors.New("two-factor confirmation not found")
	ErrChatNotFound         = errors.New("chat not found")
	ErrUploadNotFound       = errors.New("file upload not found")
)
