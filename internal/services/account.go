package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shrimpcod/RealTimeChat/internal/models"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	searchLimit       = 10
	MaxAvatarBytes    = 5 << 20
)

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Revocation remembers logged out token ids until they expire.
type Revocation interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) bool
}

// ObjectStore persists uploaded files and returns their public URL.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// AccountService owns credentials, profiles and token checks.
type AccountService struct {
	db       *gorm.DB
	revoked  Revocation
	avatars  ObjectStore
	presence *PresenceTracker
	log      zerolog.Logger
}

// NewAccountService wires the account operations. revoked and avatars may be
// nil; logout then skips revocation and avatar upload is unavailable.
func NewAccountService(db *gorm.DB, revoked Revocation, avatars ObjectStore, presence *PresenceTracker) *AccountService {
	return &AccountService{
		db:       db,
		revoked:  revoked,
		avatars:  avatars,
		presence: presence,
		log:      logger.Component("accounts"),
	}
}

func (s *AccountService) issue(user models.User) (*AuthResult, error) {
	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("generate token: %w", err))
	}
	return &AuthResult{Token: token, User: user}, nil
}

// ensureUnique reports a Conflict when email or username belongs to an
// account other than selfID.
func (s *AccountService) ensureUnique(ctx context.Context, selfID, email, username string) error {
	db := s.db.WithContext(ctx)
	var n int64
	if email != "" {
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, selfID).Count(&n).Error; err != nil {
			return apperrors.Internal(err)
		}
		if n > 0 {
			return apperrors.Conflict("An account with this email already exists")
		}
	}
	if username != "" {
		if err := db.Model(&models.User{}).Where("username = ? AND id <> ?", username, selfID).Count(&n).Error; err != nil {
			return apperrors.Internal(err)
		}
		if n > 0 {
			return apperrors.Conflict("This username is already taken")
		}
	}
	return nil
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if !utils.ValidateUsername(in.Username) {
		return nil, apperrors.BadRequest("Username must be 3-30 characters: letters, numbers, underscores or hyphens")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.BadRequest(fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}
	if err := s.ensureUnique(ctx, "", in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("User with this email or username already exists")
		}
		return nil, apperrors.Internal(err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("User registered")
	return s.issue(user)
}

func (s *AccountService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("email", in.Email).Msg("Login failed: user not found")
		return nil, apperrors.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.log.Warn().Str("user_id", user.ID).Msg("Login failed: invalid password")
		return nil, apperrors.Unauthorized("Invalid credentials")
	}

	s.log.Info().Str("user_id", user.ID).Msg("User logged in")
	return s.issue(user)
}

// Logout revokes the token and marks the user offline.
func (s *AccountService) Logout(ctx context.Context, claims *utils.Claims) error {
	if s.revoked != nil && claims.ID != "" {
		if err := s.revoked.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
			// the token still expires on its own
			s.log.Error().Err(err).Str("jti", claims.ID).Msg("Failed to blacklist token")
		}
	}
	if s.presence != nil {
		if _, err := s.presence.Disconnected(ctx, claims.UserID); err != nil {
			return apperrors.Internal(err)
		}
	}
	return nil
}

// VerifyToken resolves a bearer token to live claims.
func (s *AccountService) VerifyToken(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := utils.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	if s.revoked != nil && s.revoked.IsTokenBlacklisted(ctx, claims.ID) {
		return nil, apperrors.Unauthorized("Token has been revoked")
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", claims.UserID).Count(&n).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	if n == 0 {
		return nil, apperrors.Unauthorized("User not found")
	}
	return claims, nil
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &user, nil
}

// SearchUsers matches username or email case-insensitively, excluding the
// caller. An empty query matches nobody.
func (s *AccountService) SearchUsers(ctx context.Context, userID, query string) ([]models.PublicUser, error) {
	out := []models.PublicUser{}
	if strings.TrimSpace(query) == "" {
		return out, nil
	}

	pattern := utils.SanitizeSearchQuery(query)
	var users []models.User
	err := s.db.WithContext(ctx).
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern).
		Where("id <> ?", userID).
		Order("username ASC").
		Limit(searchLimit).
		Find(&users).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	var username, email string
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if !utils.ValidateUsername(username) {
			return nil, apperrors.BadRequest("Username must be 3-30 characters: letters, numbers, underscores or hyphens")
		}
		updates["username"] = username
	}
	if in.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, apperrors.BadRequest("Email cannot be empty")
		}
		updates["email"] = email
	}
	if len(updates) == 0 {
		return nil, apperrors.BadRequest("Nothing to update")
	}
	if err := s.ensureUnique(ctx, userID, email, username); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("User with this email or username already exists")
		}
		return nil, apperrors.Internal(err)
	}
	return s.GetUser(ctx, userID)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return apperrors.BadRequest("Current password is incorrect")
	}
	if len(in.NewPassword) < minPasswordLength {
		return apperrors.BadRequest(fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("password_hash", string(hash)).Error; err != nil {
		return apperrors.Internal(err)
	}
	s.log.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// DeleteAccount removes the user. Their messages stay with a NULL sender and
// chats they created lose the creator reference.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).Where("sender_id = ?", userID).
			UpdateColumn("sender_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Chat{}).Where("created_by_user_id = ?", userID).
			UpdateColumn("created_by_user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", userID).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("User not found")
		}
		return nil
	})
	if err != nil {
		return apperrors.As(err)
	}
	s.log.Info().Str("user_id", userID).Msg("Account deleted")
	return nil
}

// UpdateAvatar stores an uploaded image and points the profile at it.
func (s *AccountService) UpdateAvatar(ctx context.Context, userID string, body io.Reader, contentType string, size int64) (*models.User, error) {
	if s.avatars == nil {
		return nil, apperrors.NewAppError(http.StatusServiceUnavailable, apperrors.KindStore, "Avatar storage is not configured")
	}
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, apperrors.BadRequest("Only JPEG, PNG and WEBP images are allowed")
	}
	if size > MaxAvatarBytes {
		return nil, apperrors.BadRequest("Avatar must be 5 MB or smaller")
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, utils.GenerateID(), ext)
	url, err := s.avatars.PutObject(ctx, key, body, contentType)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upload avatar: %w", err))
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("avatar_url", url).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.GetUser(ctx, userID)
}
