package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen_backend/internal/services"
	"lumen_backend/internal/services/dto"
)

type ChatHandler struct {
	*BaseHandler
	chatService services.ChatService
}

func NewChatHandler(base *BaseHandler, chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		BaseHandler: base,
		chatService: chatService,
	}
}

func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	chats := rg.Group("/chats")
	chats.Use(authMW)
	{
		chats.POST("/stream", h.StreamMessage)
		chats.POST("", h.CreateChatRoom)
		chats.GET("", h.ListChatRooms)
		chats.DELETE("", h.DeleteAllChatRooms)
		chats.DELETE("/:id", h.DeleteChatRoom)
		chats.GET("/:id/messages", h.ListChatMessages)
	}
}

// sseEmitter adapts a gin response into the streaming callback the chat
// service writes to.
type sseEmitter struct {
	c *gin.Context
}

func (e *sseEmitter) Emit(event string, data interface{}) error {
	if e.Closed() {
		return nil
	}
	e.c.SSEvent(event, data)
	e.c.Writer.Flush()
	return nil
}

func (e *sseEmitter) Closed() bool {
	select {
	case <-e.c.Request.Context().Done():
		return true
	default:
		return false
	}
}

// StreamMessage runs a chat exchange as a server-sent event stream. The
// request context is wired through to the model call, so closing the
// connection cancels the upstream stream.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	h.chatService.SendMessageAndStream(c.Request.Context(), dto.SendMessageInput{
		ChatID:        req.ChatID,
		Message:       req.Message,
		AttachmentIDs: req.AttachmentIDs,
		UserID:        userID,
	}, &sseEmitter{c: c})
}

func (h *ChatHandler) CreateChatRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateChatRoomRequest
	if !h.BindAndValidate(c, &req) {
		return
	}

	chat, err := h.chatService.CreateChatRoom(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) ListChatRooms(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	offset, limit := ParseOffsetLimit(c)

	page, err := h.chatService.GetUserChatRooms(c.Request.Context(), userID, offset, limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) DeleteChatRoom(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteChatRoom(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Chat room deleted"})
}

func (h *ChatHandler) DeleteAllChatRooms(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteAllChatRooms(c.Request.Context(), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "All chat rooms deleted"})
}

func (h *ChatHandler) ListChatMessages(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	offset, limit := ParseOffsetLimit(c)

	page, err := h.chatService.GetChatMessages(c.Request.Context(), userID, c.Param("id"), offset, limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
