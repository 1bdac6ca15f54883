package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/handlers"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter, h *handlers.ChatHandler, auth gin.HandlerFunc) {
	chats := r.Group("/chats")
	chats.Use(auth)
	{
		chats.GET("", h.ListChats)
		chats.POST("", h.CreateChat)
		chats.DELETE("/:chatId", h.DeleteChat)
		chats.GET("/:chatId/messages", h.GetMessages)
		chats.POST("/:chatId/messages", middleware.ChatRateLimit(), h.SendMessage)
		chats.POST("/:chatId/mark-as-read", h.MarkRead)
		chats.PUT("/:chatId/messages/:messageId", h.EditMessage)
		chats.DELETE("/:chatId/messages/:messageId", h.DeleteMessage)
	}
}
