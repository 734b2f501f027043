package handlers

// AppHandlers holds all HTTP handlers.
type AppHandlers struct {
	AuthHandler   *AuthHandler
	UserHandler   *UserHandler
	ChatHandler   *ChatHandler
	UploadHandler *UploadHandler
}
