package models

import "time"

const ContentTypeText = "text"

type Message struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID      string     `gorm:"type:text;not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	SenderID    *string    `gorm:"type:text;index" json:"sender_id"`
	ContentType string     `gorm:"type:text;not null;default:'text'" json:"content_type"`
	TextContent string     `gorm:"type:text" json:"text_content"`
	FileURL     *string    `gorm:"type:text" json:"file_url"`
	IsEdited    bool       `gorm:"not null;default:false" json:"is_edited"`
	CreatedAt   time.Time  `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// SentBy reports whether userID authored the message. Messages whose sender
// was deleted belong to nobody.
func (m *Message) SentBy(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}
