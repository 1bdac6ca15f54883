package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
)

const (
	userIDKey = "userId"
	claimsKey = "claims"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*utils.Claims, error)
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

// AuthMiddleware requires a valid, unrevoked Bearer token for a user that
// still exists.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWith(c, apperrors.Unauthorized("Authorization header required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWith(c, apperrors.Unauthorized("Invalid authorization header format"))
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			abortWith(c, apperrors.As(err))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func CurrentClaims(c *gin.Context) *utils.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
