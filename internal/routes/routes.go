package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/handlers"
)

type Handlers struct {
	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Chats  *handlers.ChatHandler
	Health *handlers.HealthHandler
}

// Register mounts the REST API under /api and the health check at /health.
func Register(r *gin.Engine, h Handlers, auth gin.HandlerFunc) {
	r.GET("/health", h.Health.Check)

	api := r.Group("/api")
	RegisterAuthRoutes(api.Group("/auth"), h.Auth, auth)
	RegisterUserRoutes(api, h.Users, auth)
	RegisterChatRoutes(api, h.Chats, auth)
}
