package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
	"github.com/shrimpcod/RealTimeChat/internal/services"
)

type UserHandler struct {
	accounts *services.AccountService
}

func NewUserHandler(accounts *services.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Search handles GET /users/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.accounts.SearchUsers(c.Request.Context(), middleware.CurrentUserID(c), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser returns the full profile for the caller and the public view for
// anyone else.
func (h *UserHandler) GetUser(c *gin.Context) {
	id := c.Param("id")
	user, err := h.accounts.GetUser(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if id == middleware.CurrentUserID(c) {
		c.JSON(http.StatusOK, user)
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var input services.UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	var input services.ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), input); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
