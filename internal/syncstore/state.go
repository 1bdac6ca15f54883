// Package syncstore is the client side mirror of a user's chats. It folds
// fetch results and pushed realtime deltas into one State through a single
// pure reducer, so both paths converge on what the server would report.
package syncstore

import (
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Presence is the last known online state of a user.
type Presence struct {
	IsOnline bool
	LastSeen time.Time
}

// State is an immutable snapshot. Reduce never mutates the State it is given.
type State struct {
	SelfID string

	// Chats is ordered by most recent activity, newest first.
	Chats []models.ChatSummary

	ActiveChatID   string
	Messages       []models.Message
	FirstUnreadID  *uint64
	MessagesStatus Status
	MessagesError  string

	// PendingFetch is the request id whose history response will be
	// accepted for the active chat. Zero means none is outstanding.
	PendingFetch uint64
	LastRequest  uint64

	Presence map[string]Presence

	// deleted holds ids removed by deltas while a fetch was in flight, so a
	// response read before the delete cannot resurrect them.
	deleted []uint64
}

func NewState(selfID string) State {
	return State{
		SelfID:         selfID,
		Chats:          []models.ChatSummary{},
		Messages:       []models.Message{},
		MessagesStatus: StatusIdle,
		Presence:       map[string]Presence{},
	}
}

// Chat returns the summary of chatID if it is in the list.
func (s State) Chat(chatID string) (models.ChatSummary, bool) {
	if i := s.chatIndex(chatID); i >= 0 {
		return s.Chats[i], true
	}
	return models.ChatSummary{}, false
}

// TotalUnread sums unread counts over all chats.
func (s State) TotalUnread() int64 {
	var n int64
	for _, c := range s.Chats {
		n += c.UnreadCount
	}
	return n
}

func (s State) chatIndex(chatID string) int {
	for i := range s.Chats {
		if s.Chats[i].ID == chatID {
			return i
		}
	}
	return -1
}

func (s State) messageIndex(id uint64) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// clone copies every slice and map the reducer may write to. Pointed-to
// values are replaced rather than mutated, so they can stay shared.
func (s State) clone() State {
	out := s
	out.Chats = append([]models.ChatSummary(nil), s.Chats...)
	out.Messages = append([]models.Message(nil), s.Messages...)
	out.deleted = append([]uint64(nil), s.deleted...)
	out.Presence = make(map[string]Presence, len(s.Presence))
	for k, v := range s.Presence {
		out.Presence[k] = v
	}
	if out.Chats == nil {
		out.Chats = []models.ChatSummary{}
	}
	if out.Messages == nil {
		out.Messages = []models.Message{}
	}
	return out
}
