package migrations

import (
	"github.com/shrimpcod/RealTimeChat/internal/models"
	"gorm.io/gorm"
)

// Migration001BackfillPrivatePairKeys fills chats.pair_key for private chats
// created before the column existed. Duplicate pairs keep the oldest chat's
// key; the newer duplicates stay NULL and are left for manual cleanup.
func Migration001BackfillPrivatePairKeys() Migration {
	return Migration{
		ID:   "001_backfill_private_pair_keys",
		Name: "Backfill pair keys of private chats",
		Up: func(db *gorm.DB) error {
			var chats []models.Chat
			if err := db.Where("type = ? AND pair_key IS NULL", models.ChatTypePrivate).
				Order("created_at ASC").
				Find(&chats).Error; err != nil {
				return err
			}

			taken := map[string]bool{}
			var existing []string
			if err := db.Model(&models.Chat{}).Where("pair_key IS NOT NULL").Pluck("pair_key", &existing).Error; err != nil {
				return err
			}
			for _, k := range existing {
				taken[k] = true
			}

			for _, chat := range chats {
				var members []string
				if err := db.Model(&models.ChatParticipant{}).
					Where("chat_id = ?", chat.ID).
					Pluck("user_id", &members).Error; err != nil {
					return err
				}
				if len(members) != 2 {
					continue
				}
				key := models.PrivatePairKey(members[0], members[1])
				if taken[key] {
					continue
				}
				if err := db.Model(&models.Chat{}).Where("id = ?", chat.ID).
					UpdateColumn("pair_key", key).Error; err != nil {
					return err
				}
				taken[key] = true
			}
			return nil
		},
		Down: func(db *gorm.DB) error {
			return db.Model(&models.Chat{}).Where("pair_key IS NOT NULL").
				UpdateColumn("pair_key", nil).Error
		},
	}
}
