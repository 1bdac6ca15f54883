package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/handlers"
)

func RegisterUserRoutes(r gin.IRouter, h *handlers.UserHandler, auth gin.HandlerFunc) {
	users := r.Group("/users")
	users.Use(auth)
	{
		users.GET("/search", h.Search)
		users.PUT("/me", h.UpdateMe)
		users.POST("/me/avatar", h.UploadAvatar)
		users.POST("/me/change-password", h.ChangePassword)
		users.DELETE("/me", h.DeleteMe)
		users.GET("/:id", h.GetUser)
	}
}
