package testutil

import (
	"fmt"
	"sync"
)

// Delivery is one event captured by RecordingHub.
type Delivery struct {
	Room    string
	User    string
	Event   string
	Payload any
}

// RecordingHub captures fan-out calls instead of writing to sockets.
type RecordingHub struct {
	mu         sync.Mutex
	Deliveries []Delivery
	Joined     map[string][]string
	Cleared    []string
	// KnownConns limits JoinRoom to these connection ids when non-nil.
	KnownConns map[string]bool
}

func NewRecordingHub() *RecordingHub {
	return &RecordingHub{Joined: map[string][]string{}}
}

func (h *RecordingHub) BroadcastToRoom(chatID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Deliveries = append(h.Deliveries, Delivery{Room: chatID, Event: event, Payload: payload})
}

func (h *RecordingHub) BroadcastToUser(userID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Deliveries = append(h.Deliveries, Delivery{User: userID, Event: event, Payload: payload})
}

func (h *RecordingHub) JoinRoom(connID, chatID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.KnownConns != nil && !h.KnownConns[connID] {
		return fmt.Errorf("unknown connection %s", connID)
	}
	h.Joined[connID] = append(h.Joined[connID], chatID)
	return nil
}

func (h *RecordingHub) LeaveRoom(connID, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.Joined[connID]
	for i, r := range rooms {
		if r == chatID {
			h.Joined[connID] = append(rooms[:i], rooms[i+1:]...)
			return
		}
	}
}

func (h *RecordingHub) ClearRoom(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Cleared = append(h.Cleared, chatID)
}

// ToUser returns what userID's personal channel received for event.
func (h *RecordingHub) ToUser(userID, event string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, d := range h.Deliveries {
		if d.User == userID && d.Event == event {
			out = append(out, d.Payload)
		}
	}
	return out
}

// ToRoom returns what chatID's room received for event.
func (h *RecordingHub) ToRoom(chatID, event string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, d := range h.Deliveries {
		if d.Room == chatID && d.Event == event {
			out = append(out, d.Payload)
		}
	}
	return out
}

func (h *RecordingHub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Deliveries = nil
}
