package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
	"github.com/shrimpcod/RealTimeChat/internal/services"
)

type ChatHandler struct {
	engine *services.ChatEngine
}

func NewChatHandler(engine *services.ChatEngine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type createChatInput struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

type messageTextInput struct {
	Text string `json:"text"`
}

// CreateChat answers 201 for a new chat and 200 when the pair already had one.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var input createChatInput
	if !bindJSON(c, &input) {
		return
	}
	chat, created, err := h.engine.CreateDirectChat(c.Request.Context(), middleware.CurrentUserID(c), input.ReceiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.engine.ListChats(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	history, err := h.engine.History(c.Request.Context(), middleware.CurrentUserID(c), chatID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var input messageTextInput
	if !bindJSON(c, &input) {
		return
	}
	msg, err := h.engine.SendMessage(c.Request.Context(), middleware.CurrentUserID(c), chatID, input.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	receipt, err := h.engine.MarkChatRead(c.Request.Context(), middleware.CurrentUserID(c), chatID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteChat(c.Request.Context(), middleware.CurrentUserID(c), chatID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted successfully"})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var input messageTextInput
	if !bindJSON(c, &input) {
		return
	}
	msg, err := h.engine.EditMessage(c.Request.Context(), middleware.CurrentUserID(c), chatID, messageID, input.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if _, err := h.engine.DeleteMessage(c.Request.Context(), middleware.CurrentUserID(c), chatID, messageID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}
