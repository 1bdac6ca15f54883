package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/handlers"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter, h *handlers.AuthHandler, auth gin.HandlerFunc) {
	r.POST("/register", middleware.AuthRateLimit(), h.Register)
	r.POST("/login", middleware.AuthRateLimit(), h.Login)
	r.POST("/logout", auth, h.Logout)
	r.GET("/me", auth, h.Me)
}
