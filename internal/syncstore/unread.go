package syncstore

import (
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
)

// isUnread mirrors the server's unread scope: newer than the cursor and not
// sent by the viewer. Messages of deleted users count.
func isUnread(m models.Message, lastReadAt *time.Time, selfID string) bool {
	if m.SentBy(selfID) {
		return false
	}
	return lastReadAt == nil || m.CreatedAt.After(*lastReadAt)
}

func UnreadCount(messages []models.Message, lastReadAt *time.Time, selfID string) int64 {
	var n int64
	for _, m := range messages {
		if isUnread(m, lastReadAt, selfID) {
			n++
		}
	}
	return n
}

// FirstUnreadID returns the earliest unread message by (created_at, id), or
// nil when everything has been read.
func FirstUnreadID(messages []models.Message, lastReadAt *time.Time, selfID string) *uint64 {
	var first *models.Message
	for i := range messages {
		m := &messages[i]
		if !isUnread(*m, lastReadAt, selfID) {
			continue
		}
		if first == nil || m.CreatedAt.Before(first.CreatedAt) ||
			(m.CreatedAt.Equal(first.CreatedAt) && m.ID < first.ID) {
			first = m
		}
	}
	if first == nil {
		return nil
	}
	id := first.ID
	return &id
}
