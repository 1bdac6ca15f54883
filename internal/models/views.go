package models

import "time"

// ParticipantInfo is the roster entry embedded in chat summaries.
type ParticipantInfo struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	AvatarURL *string    `json:"avatar_url"`
	IsOnline  bool       `json:"is_online"`
	LastSeen  *time.Time `json:"last_seen"`
}

// ChatSummary is a chat as one viewer sees it. It is computed per request
// and never persisted.
type ChatSummary struct {
	ID              string            `json:"id"`
	Name            *string           `json:"name"`
	AvatarURL       *string           `json:"avatar_url"`
	Type            ChatType          `json:"type"`
	CreatedByUserID *string           `json:"created_by_user_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Participants    []ParticipantInfo `json:"participants"`
	LastMessage     *Message          `json:"last_message"`
	UnreadCount     int64             `json:"unreadCount"`
	LastReadAt      *time.Time        `json:"last_read_at"`
}

func NewChatSummary(chat Chat) ChatSummary {
	return ChatSummary{
		ID:              chat.ID,
		Name:            chat.Name,
		Type:            chat.Type,
		CreatedByUserID: chat.CreatedByUserID,
		CreatedAt:       chat.CreatedAt,
		UpdatedAt:       chat.UpdatedAt,
		Participants:    []ParticipantInfo{},
	}
}

// MessageHistory is one chat's ordered messages plus the first message the
// viewer has not read yet.
type MessageHistory struct {
	Messages      []Message `json:"messages"`
	FirstUnreadID *uint64   `json:"firstUnreadId"`
}

// ReadReceipt is returned when a chat is marked read.
type ReadReceipt struct {
	ChatID     string    `json:"chatId"`
	LastReadAt time.Time `json:"last_read_at"`
}
