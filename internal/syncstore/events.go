package syncstore

import (
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
)

// Event is anything Reduce knows how to fold into a State.
type Event interface {
	event()
}

// ChatsFetched carries a full chat list response.
type ChatsFetched struct {
	Chats []models.ChatSummary
}

// ChatCreated is a chat that appeared for this user, pushed or created
// locally. Activate opens it, as after the user starts a conversation.
type ChatCreated struct {
	Chat     models.ChatSummary
	Activate bool
}

// ChatUpdated is the chat list delta sent to participants who are not the
// sender of a new message.
type ChatUpdated struct {
	Chat models.ChatSummary
}

type ChatDeleted struct {
	ChatID string
}

// ActiveChatChanged opens ChatID, or closes the open chat when empty. It
// starts a new history request.
type ActiveChatChanged struct {
	ChatID string
}

type MessagesFetched struct {
	ChatID    string
	RequestID uint64
	History   models.MessageHistory
}

type MessagesFetchFailed struct {
	ChatID    string
	RequestID uint64
	Err       string
}

// MessageReceived is a new message pushed over the realtime channel.
type MessageReceived struct {
	Message models.Message
}

// LocalMessageSent is the acknowledged copy of a message this client sent.
type LocalMessageSent struct {
	Message models.Message
}

type MessageEdited struct {
	Message models.Message
}

type MessageDeleted struct {
	ChatID    string
	MessageID uint64
}

// ChatMarkedRead is a successful mark as read response.
type ChatMarkedRead struct {
	ChatID     string
	LastReadAt time.Time
}

// RoomJoined is a successful join acknowledgement. The server advances the
// read cursor on join; At is the receipt time from the ack, or zero when the
// ack carried none.
type RoomJoined struct {
	ChatID string
	At     time.Time
}

type UserStatusChanged struct {
	UserID   string
	IsOnline bool
	LastSeen time.Time
}

// Reset drops everything, as on logout, and starts over as SelfID.
type Reset struct {
	SelfID string
}

func (ChatsFetched) event()        {}
func (ChatCreated) event()         {}
func (ChatUpdated) event()         {}
func (ChatDeleted) event()         {}
func (ActiveChatChanged) event()   {}
func (MessagesFetched) event()     {}
func (MessagesFetchFailed) event() {}
func (MessageReceived) event()     {}
func (LocalMessageSent) event()    {}
func (MessageEdited) event()       {}
func (MessageDeleted) event()      {}
func (ChatMarkedRead) event()      {}
func (RoomJoined) event()          {}
func (UserStatusChanged) event()   {}
func (Reset) event()               {}
