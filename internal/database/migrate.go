package database

import (
	"fmt"

	"github.com/shrimpcod/RealTimeChat/internal/migrations"
	"github.com/shrimpcod/RealTimeChat/internal/models"
	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
	}
}

// Migrate creates the tables and then applies the versioned migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return migrations.NewMigrator(db).Run()
}
