package migrations

import (
	"gorm.io/gorm"
)

// Migration002AddUnreadScanIndex covers the unread count and first unread
// lookups: WHERE chat_id = ? AND created_at > ? AND sender_id <> ?
func Migration002AddUnreadScanIndex() Migration {
	return Migration{
		ID:        "002_add_unread_scan_index",
		Name:      "Add index for unread message scans",
		DependsOn: []string{"001_backfill_private_pair_keys"},
		Up: func(db *gorm.DB) error {
			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_messages_unread_scan
				ON messages (chat_id, created_at, sender_id)
			`).Error
		},
		Down: func(db *gorm.DB) error {
			return db.Exec(`DROP INDEX IF EXISTS idx_messages_unread_scan`).Error
		},
	}
}
