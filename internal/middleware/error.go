package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
)

// ErrorHandlerMiddleware recovers panics and renders errors attached with
// c.Error when the handler has not written a response itself.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal Server Error",
					"message": "An unexpected error occurred",
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		appErr := apperrors.As(err)
		if appErr.Kind == apperrors.KindStore {
			logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled request error")
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
	}
}
