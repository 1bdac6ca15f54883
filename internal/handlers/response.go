package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
)

// abortWithError renders err and records it for ErrorHandlerMiddleware,
// which logs store failures.
func abortWithError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithError(c, apperrors.BadRequest("Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// chatIDParam returns :chatId when it is a uuid.
func chatIDParam(c *gin.Context) (string, bool) {
	chatID := c.Param("chatId")
	if !utils.IsUUID(chatID) {
		abortWithError(c, apperrors.BadRequest("Invalid chat id"))
		return "", false
	}
	return chatID, true
}

func messageIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("messageId"), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, apperrors.BadRequest("Invalid message id"))
		return 0, false
	}
	return id, true
}
