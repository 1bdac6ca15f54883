package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
	"github.com/shrimpcod/RealTimeChat/internal/services"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
)

// multipart framing allowance on top of the file itself
const uploadOverhead = 1 << 20

// UploadAvatar handles POST /users/me/avatar with a multipart "avatar"
// field. The stored content type is sniffed from the bytes, not taken from
// the client.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxAvatarBytes+uploadOverhead)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		abortWithError(c, apperrors.BadRequest("An avatar image file is required"))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		abortWithError(c, apperrors.BadRequest("Could not read the uploaded file"))
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	user, err := h.accounts.UpdateAvatar(c.Request.Context(), middleware.CurrentUserID(c),
		io.MultiReader(bytes.NewReader(head), file), contentType, header.Size)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
