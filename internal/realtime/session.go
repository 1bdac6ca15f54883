// Package realtime owns socket connections: who is connected, which chat
// rooms each connection joined, and delivery of pushed events.
package realtime

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
)

// Conn is the part of a socket connection the session table needs.
// socketio.Conn satisfies it.
type Conn interface {
	ID() string
	Emit(event string, args ...interface{})
}

type session struct {
	conn   Conn
	userID string
	rooms  map[string]struct{}
}

// SessionManager is the explicit session table: connection to user and
// joined chat rooms, plus reverse indexes for user and room fan-out.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	byUser   map[string]map[string]struct{}
	byRoom   map[string]map[string]struct{}
	log      zerolog.Logger
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*session),
		byUser:   make(map[string]map[string]struct{}),
		byRoom:   make(map[string]map[string]struct{}),
		log:      logger.Component("sessions"),
	}
}

func addIndex(idx map[string]map[string]struct{}, key, connID string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[connID] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, key, connID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// Register attaches an authenticated connection to userID's personal
// channel. Registering an id twice replaces the earlier session.
func (m *SessionManager) Register(conn Conn, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[conn.ID()]; ok {
		m.dropLocked(conn.ID(), old)
	}
	m.sessions[conn.ID()] = &session{conn: conn, userID: userID, rooms: make(map[string]struct{})}
	addIndex(m.byUser, userID, conn.ID())
	m.log.Debug().Str("conn_id", conn.ID()).Str("user_id", userID).Msg("Session registered")
}

// Unregister removes connID and every room it held. It returns the owning
// user, or "" when connID was unknown.
func (m *SessionManager) Unregister(connID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[connID]
	if !ok {
		return ""
	}
	m.dropLocked(connID, s)
	m.log.Debug().Str("conn_id", connID).Str("user_id", s.userID).Msg("Session removed")
	return s.userID
}

func (m *SessionManager) dropLocked(connID string, s *session) {
	for chatID := range s.rooms {
		removeIndex(m.byRoom, chatID, connID)
	}
	removeIndex(m.byUser, s.userID, connID)
	delete(m.sessions, connID)
}

func (m *SessionManager) UserID(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connID]
	if !ok {
		return "", false
	}
	return s.userID, true
}

// rooms lists the chat rooms connID has joined.
func (m *SessionManager) rooms(connID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.rooms))
	for chatID := range s.rooms {
		out = append(out, chatID)
	}
	return out
}

func (m *SessionManager) roomSize(chatID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRoom[chatID])
}

func (m *SessionManager) isOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]) > 0
}

func (m *SessionManager) connectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) JoinRoom(connID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[connID]
	if !ok {
		return fmt.Errorf("unknown connection %s", connID)
	}
	s.rooms[chatID] = struct{}{}
	addIndex(m.byRoom, chatID, connID)
	return nil
}

func (m *SessionManager) LeaveRoom(connID, chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[connID]; ok {
		delete(s.rooms, chatID)
	}
	removeIndex(m.byRoom, chatID, connID)
}

// ClearRoom unsubscribes every connection from chatID.
func (m *SessionManager) ClearRoom(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for connID := range m.byRoom[chatID] {
		if s, ok := m.sessions[connID]; ok {
			delete(s.rooms, chatID)
		}
	}
	delete(m.byRoom, chatID)
}

// collect snapshots the connections of one index entry. Emits happen
// outside the lock.
func (m *SessionManager) collect(idx map[string]map[string]struct{}, key string) []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := idx[key]
	out := make([]Conn, 0, len(set))
	for connID := range set {
		if s, ok := m.sessions[connID]; ok {
			out = append(out, s.conn)
		}
	}
	return out
}

func (m *SessionManager) BroadcastToRoom(chatID, event string, payload any) {
	for _, c := range m.collect(m.byRoom, chatID) {
		c.Emit(event, payload)
	}
}

func (m *SessionManager) BroadcastToUser(userID, event string, payload any) {
	for _, c := range m.collect(m.byUser, userID) {
		c.Emit(event, payload)
	}
}
