package models

import "time"

// Server originated realtime events.
const (
	EventNewMessage        = "newMessage"
	EventMessageEdited     = "messageEdited"
	EventDeleteMessage     = "deleteMessage"
	EventChatUpdate        = "chatUpdate"
	EventCreateChat        = "createChat"
	EventDeleteChat        = "deleteChat"
	EventUserStatusChanged = "userStatusChanged"
)

type DeleteMessagePayload struct {
	MessageID uint64 `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type DeleteChatPayload struct {
	ChatID string `json:"chatId"`
}

type UserStatusPayload struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}
