package syncstore

import (
	"sort"
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
)

// Reduce folds ev into s and returns the new State.
//
// Precedence when inputs disagree:
//   - a pushed delta or an own acknowledgement beats an older fetch response
//     for the same chat: a fetched chat whose last message is older than the
//     local one keeps the local last message and unread count;
//   - a history response is dropped unless it answers the request currently
//     pending for the active chat;
//   - messages are unique by id and kept in id order. On an id collision the
//     copy with the later updated_at wins.
func Reduce(s State, ev Event) State {
	s = s.clone()

	switch e := ev.(type) {
	case ChatsFetched:
		return s.chatsFetched(e.Chats)
	case ChatCreated:
		s = s.upsertChat(e.Chat)
		if e.Activate {
			return s.openChat(e.Chat.ID)
		}
		return s
	case ChatUpdated:
		return s.chatUpdated(e.Chat)
	case ChatDeleted:
		return s.removeChat(e.ChatID)
	case ActiveChatChanged:
		return s.openChat(e.ChatID)
	case MessagesFetched:
		return s.messagesFetched(e)
	case MessagesFetchFailed:
		if e.ChatID != s.ActiveChatID || e.RequestID != s.PendingFetch || s.PendingFetch == 0 {
			return s
		}
		s.MessagesStatus = StatusFailed
		s.MessagesError = e.Err
		s.FirstUnreadID = nil
		s.PendingFetch = 0
		s.deleted = nil
		return s
	case MessageReceived:
		return s.messageArrived(e.Message)
	case LocalMessageSent:
		return s.messageArrived(e.Message)
	case MessageEdited:
		return s.messageEdited(e.Message)
	case MessageDeleted:
		return s.messageDeleted(e.ChatID, e.MessageID)
	case ChatMarkedRead:
		s = s.markRead(e.ChatID, e.LastReadAt)
		if s.ActiveChatID == e.ChatID {
			s.FirstUnreadID = nil
		}
		return s
	case RoomJoined:
		// The divider stays where the fetch put it until the user marks the
		// chat read.
		return s.roomJoined(e.ChatID, e.At)
	case UserStatusChanged:
		return s.userStatus(e)
	case Reset:
		return NewState(e.SelfID)
	}
	return s
}

// newer reports whether a is a later message than b.
func newer(a, b *models.Message) bool {
	return a != nil && (b == nil || a.ID > b.ID)
}

func laterTime(a, b *time.Time) bool {
	return a != nil && (b == nil || a.After(*b))
}

func activity(c models.ChatSummary) time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.UpdatedAt) {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

func sortByActivity(chats []models.ChatSummary) {
	sort.SliceStable(chats, func(i, j int) bool {
		return activity(chats[i]).After(activity(chats[j]))
	})
}

func (s State) moveToFront(i int) {
	c := s.Chats[i]
	copy(s.Chats[1:i+1], s.Chats[:i])
	s.Chats[0] = c
}

func (s State) chatsFetched(fetched []models.ChatSummary) State {
	chats := make([]models.ChatSummary, 0, len(fetched))
	for _, c := range fetched {
		if c.Participants == nil {
			c.Participants = []models.ParticipantInfo{}
		}
		if i := s.chatIndex(c.ID); i >= 0 {
			c = keepLocalProgress(s.Chats[i], c)
		}
		c.Participants = s.overlayPresence(c.Participants)
		chats = append(chats, c)
	}
	// The open chat may postdate the request this response answers.
	if s.ActiveChatID != "" && !containsChat(fetched, s.ActiveChatID) {
		if i := s.chatIndex(s.ActiveChatID); i >= 0 {
			chats = append(chats, s.Chats[i])
		}
	}
	sortByActivity(chats)
	s.Chats = chats
	return s
}

func containsChat(chats []models.ChatSummary, chatID string) bool {
	for i := range chats {
		if chats[i].ID == chatID {
			return true
		}
	}
	return false
}

// keepLocalProgress returns fetched with any newer local last message or
// read cursor carried over, together with the unread count that goes with
// it.
func keepLocalProgress(local, fetched models.ChatSummary) models.ChatSummary {
	out := fetched
	msgAhead := newer(local.LastMessage, fetched.LastMessage)
	readAhead := laterTime(local.LastReadAt, fetched.LastReadAt) && !newer(fetched.LastMessage, local.LastMessage)
	if msgAhead {
		out.LastMessage = local.LastMessage
		if local.UpdatedAt.After(out.UpdatedAt) {
			out.UpdatedAt = local.UpdatedAt
		}
	}
	if msgAhead || readAhead {
		out.UnreadCount = local.UnreadCount
		if laterTime(local.LastReadAt, out.LastReadAt) {
			out.LastReadAt = local.LastReadAt
		}
	}
	return out
}

// overlayPresence applies status deltas that are newer than the roster.
func (s State) overlayPresence(participants []models.ParticipantInfo) []models.ParticipantInfo {
	if len(s.Presence) == 0 {
		return participants
	}
	out := make([]models.ParticipantInfo, len(participants))
	copy(out, participants)
	for i := range out {
		p, ok := s.Presence[out[i].ID]
		if !ok {
			continue
		}
		if out[i].LastSeen == nil || p.LastSeen.After(*out[i].LastSeen) {
			seen := p.LastSeen
			out[i].IsOnline = p.IsOnline
			out[i].LastSeen = &seen
		}
	}
	return out
}

// upsertChat adds chat at the front, or refreshes the metadata of the local
// copy without losing newer local progress.
func (s State) upsertChat(chat models.ChatSummary) State {
	if chat.Participants == nil {
		chat.Participants = []models.ParticipantInfo{}
	}
	chat.Participants = s.overlayPresence(chat.Participants)

	i := s.chatIndex(chat.ID)
	if i < 0 {
		s.Chats = append([]models.ChatSummary{chat}, s.Chats...)
		return s
	}
	s.Chats[i] = keepLocalProgress(s.Chats[i], chat)
	return s
}

func (s State) chatUpdated(chat models.ChatSummary) State {
	i := s.chatIndex(chat.ID)
	if i < 0 {
		return s.upsertChat(chat)
	}

	local := s.Chats[i]
	local.Name = chat.Name
	local.AvatarURL = chat.AvatarURL
	local.Type = chat.Type
	if chat.Participants != nil {
		local.Participants = s.overlayPresence(chat.Participants)
	}
	s.Chats[i] = local

	if chat.LastMessage != nil {
		return s.project(*chat.LastMessage)
	}
	return s
}

// project records msg as the chat's latest message if it is newer than the
// one on file. Only that transition bumps unread and reorders the list, so
// the room broadcast and the chat list delta for one message count once.
func (s State) project(msg models.Message) State {
	i := s.chatIndex(msg.ChatID)
	if i < 0 || !newer(&msg, s.Chats[i].LastMessage) {
		return s
	}

	c := s.Chats[i]
	last := msg
	c.LastMessage = &last
	if msg.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.CreatedAt
	}
	if !msg.SentBy(s.SelfID) && msg.ChatID != s.ActiveChatID {
		c.UnreadCount++
	}
	s.Chats[i] = c
	s.moveToFront(i)
	return s
}

func (s State) messageArrived(msg models.Message) State {
	if msg.ChatID == s.ActiveChatID && !s.wasDeleted(msg.ID) {
		s.Messages = mergeMessages(s.Messages, []models.Message{msg})
	}
	return s.project(msg)
}

func (s State) messageEdited(msg models.Message) State {
	if msg.ChatID == s.ActiveChatID {
		i := s.messageIndex(msg.ID)
		switch {
		case i >= 0 && !laterTime(s.Messages[i].UpdatedAt, msg.UpdatedAt):
			s.Messages[i] = msg
		case i < 0 && s.MessagesStatus == StatusLoading && !s.wasDeleted(msg.ID):
			// Held until the history arrives; the later updated_at wins there.
			s.Messages = mergeMessages(s.Messages, []models.Message{msg})
		}
	}
	if i := s.chatIndex(msg.ChatID); i >= 0 {
		c := s.Chats[i]
		if c.LastMessage != nil && c.LastMessage.ID == msg.ID && !laterTime(c.LastMessage.UpdatedAt, msg.UpdatedAt) {
			last := msg
			c.LastMessage = &last
			s.Chats[i] = c
		}
	}
	return s
}

func (s State) messageDeleted(chatID string, messageID uint64) State {
	if chatID != s.ActiveChatID {
		return s
	}
	if s.MessagesStatus == StatusLoading {
		s.deleted = append(s.deleted, messageID)
	}

	i := s.messageIndex(messageID)
	if i < 0 {
		return s
	}
	s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)

	if s.FirstUnreadID != nil && *s.FirstUnreadID == messageID {
		s.FirstUnreadID = nil
		for _, m := range s.Messages[i:] {
			if !m.SentBy(s.SelfID) {
				id := m.ID
				s.FirstUnreadID = &id
				break
			}
		}
	}

	if ci := s.chatIndex(chatID); ci >= 0 {
		c := s.Chats[ci]
		if c.LastMessage != nil && c.LastMessage.ID == messageID {
			c.LastMessage = nil
			if n := len(s.Messages); n > 0 {
				last := s.Messages[n-1]
				c.LastMessage = &last
			}
			s.Chats[ci] = c
		}
	}
	return s
}

func (s State) wasDeleted(id uint64) bool {
	for _, d := range s.deleted {
		if d == id {
			return true
		}
	}
	return false
}

func (s State) removeChat(chatID string) State {
	i := s.chatIndex(chatID)
	if i >= 0 {
		s.Chats = append(s.Chats[:i], s.Chats[i+1:]...)
	}
	if s.ActiveChatID == chatID {
		s = s.closeActive()
	}
	return s
}

func (s State) closeActive() State {
	s.ActiveChatID = ""
	s.Messages = []models.Message{}
	s.MessagesStatus = StatusIdle
	s.MessagesError = ""
	s.FirstUnreadID = nil
	s.PendingFetch = 0
	s.deleted = nil
	return s
}

// openChat switches the active chat and issues a history request id.
// Reopening the active chat only refetches when no history is loaded or
// loading.
func (s State) openChat(chatID string) State {
	if chatID == s.ActiveChatID {
		if chatID == "" || s.MessagesStatus == StatusSucceeded || s.MessagesStatus == StatusLoading {
			return s
		}
	} else {
		s = s.closeActive()
		s.ActiveChatID = chatID
		if chatID == "" {
			return s
		}
	}

	s.LastRequest++
	s.PendingFetch = s.LastRequest
	s.MessagesStatus = StatusLoading
	s.MessagesError = ""
	s.FirstUnreadID = nil
	return s
}

func (s State) messagesFetched(e MessagesFetched) State {
	if e.ChatID != s.ActiveChatID || e.RequestID != s.PendingFetch || s.PendingFetch == 0 {
		return s
	}

	fetched := make([]models.Message, 0, len(e.History.Messages))
	for _, m := range e.History.Messages {
		if m.ChatID == e.ChatID && !s.wasDeleted(m.ID) {
			fetched = append(fetched, m)
		}
	}
	// Deltas that arrived while loading are already in s.Messages.
	s.Messages = mergeMessages(fetched, s.Messages)
	s.FirstUnreadID = e.History.FirstUnreadID
	if s.FirstUnreadID != nil && s.messageIndex(*s.FirstUnreadID) < 0 {
		s.FirstUnreadID = nil
	}
	s.MessagesStatus = StatusSucceeded
	s.MessagesError = ""
	s.PendingFetch = 0
	s.deleted = nil

	if n := len(s.Messages); n > 0 {
		s = s.project(s.Messages[n-1])
	}
	return s
}

func (s State) markRead(chatID string, at time.Time) State {
	i := s.chatIndex(chatID)
	if i < 0 {
		return s
	}
	c := s.Chats[i]
	if laterTime(c.LastReadAt, &at) {
		return s
	}
	c.UnreadCount = 0
	c.LastReadAt = &at
	s.Chats[i] = c
	return s
}

// roomJoined always clears unread: the server advanced its cursor to its own
// now, which At may trail when it comes from the client clock. The cached
// cursor still only moves forward.
func (s State) roomJoined(chatID string, at time.Time) State {
	i := s.chatIndex(chatID)
	if i < 0 {
		return s
	}
	c := s.Chats[i]
	c.UnreadCount = 0
	if !at.IsZero() && !laterTime(c.LastReadAt, &at) {
		c.LastReadAt = &at
	}
	s.Chats[i] = c
	return s
}

func (s State) userStatus(e UserStatusChanged) State {
	if prev, ok := s.Presence[e.UserID]; ok && prev.LastSeen.After(e.LastSeen) {
		return s
	}
	s.Presence[e.UserID] = Presence{IsOnline: e.IsOnline, LastSeen: e.LastSeen}

	for i := range s.Chats {
		c := s.Chats[i]
		for j := range c.Participants {
			if c.Participants[j].ID != e.UserID {
				continue
			}
			participants := make([]models.ParticipantInfo, len(c.Participants))
			copy(participants, c.Participants)
			seen := e.LastSeen
			participants[j].IsOnline = e.IsOnline
			participants[j].LastSeen = &seen
			c.Participants = participants
			s.Chats[i] = c
			break
		}
	}
	return s
}

// mergeMessages returns the union of base and incoming ordered by id. A
// duplicate id keeps whichever copy was updated last.
func mergeMessages(base, incoming []models.Message) []models.Message {
	byID := make(map[uint64]int, len(base)+len(incoming))
	out := make([]models.Message, 0, len(base)+len(incoming))
	for _, list := range [][]models.Message{base, incoming} {
		for _, m := range list {
			if i, ok := byID[m.ID]; ok {
				if !laterTime(out[i].UpdatedAt, m.UpdatedAt) {
					out[i] = m
				}
				continue
			}
			byID[m.ID] = len(out)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
