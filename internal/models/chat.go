package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

type Chat struct {
	ID              string   `gorm:"primaryKey;type:text" json:"id"`
	Name            *string  `gorm:"type:text" json:"name"`
	Type            ChatType `gorm:"type:text;not null;default:'private'" json:"type"`
	CreatedByUserID *string  `gorm:"type:text;index" json:"created_by_user_id"`

	// PairKey is set for private chats only. The unique index guarantees a
	// single private chat per unordered pair of users.
	PairKey *string `gorm:"type:text;uniqueIndex" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// PrivatePairKey returns the canonical key of an unordered user pair.
func PrivatePairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// ChatParticipant is the membership row. LastReadAt is the read cursor;
// unread counts are always derived from it, never stored.
type ChatParticipant struct {
	ChatID     string     `gorm:"primaryKey;type:text" json:"chat_id"`
	UserID     string     `gorm:"primaryKey;type:text;index" json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
}
