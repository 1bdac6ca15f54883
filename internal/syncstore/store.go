package syncstore

import "sync"

// Store serializes events through Reduce and publishes every new State.
type Store struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

func NewStore(selfID string) *Store {
	return &Store{
		state: NewState(selfID),
		subs:  make(map[int]func(State)),
	}
}

// Dispatch applies ev and notifies subscribers outside the lock, in no
// particular order.
func (s *Store) Dispatch(ev Event) State {
	s.mu.Lock()
	s.state = Reduce(s.state, ev)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every future State and returns a func that
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// OpenChat makes chatID active and returns the request id the caller must
// attach to the history response. Zero means no fetch is needed.
func (s *Store) OpenChat(chatID string) uint64 {
	return s.Dispatch(ActiveChatChanged{ChatID: chatID}).PendingFetch
}
