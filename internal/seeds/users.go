package seeds

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

var demoUsernames = []string{"alice", "bob", "carol"}

// GetOrCreateUser returns the account named username, creating it with
// DemoPassword when missing.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, username string) (models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err == nil {
		log.Printf("   ✅ User found: %s", user.Username)
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	avatar := "https://api.dicebear.com/7.x/avataaars/svg?seed=" + username
	user = models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		AvatarURL:    &avatar,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return models.User{}, err
	}
	log.Printf("   ✅ User created: %s", user.Username)
	return user, nil
}

func SeedUsers(ctx context.Context, db *gorm.DB) ([]models.User, error) {
	log.Println("👤 Seeding demo users...")
	users := make([]models.User, 0, len(demoUsernames))
	for _, name := range demoUsernames {
		u, err := GetOrCreateUser(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", name, err)
		}
		users = append(users, u)
	}
	return users, nil
}
