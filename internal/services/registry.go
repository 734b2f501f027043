package services

import (
	"lumen_backend/internal/email"
	"lumen_backend/internal/storage"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	AuthService   AuthService
	UserService   UserService
	ChatService   ChatService
	UploadService UploadService
	EmailService  email.Provider
	Storage       storage.Storage
}
