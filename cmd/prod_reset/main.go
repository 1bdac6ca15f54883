package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/shrimpcod/RealTimeChat/internal/database"
	"gorm.io/gorm"
)

func main() {
	withUsers := flag.Bool("users", false, "also delete user accounts")
	flag.Parse()

	config.LoadConfig()
	database.Connect()

	fmt.Println("⚠️  WARNING: This will PERMANENTLY DELETE all chats and messages.")
	if *withUsers {
		fmt.Println("⚠️  User accounts will be deleted too.")
	}
	fmt.Println("Proceeding in 3 seconds...")
	time.Sleep(3 * time.Second)

	models := database.Models()
	if !*withUsers {
		models = models[1:]
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// children first
		for i := len(models) - 1; i >= 0; i-- {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(models[i])
			if res.Error != nil {
				return fmt.Errorf("clear %T: %w", models[i], res.Error)
			}
			fmt.Printf("🗑️  %T: %d rows\n", models[i], res.RowsAffected)
		}
		if !*withUsers {
			return tx.Exec("UPDATE users SET is_online = false").Error
		}
		return nil
	})
	if err != nil {
		log.Fatalf("❌ Reset failed: %v", err)
	}
	fmt.Println("✅ Reset complete.")
}
