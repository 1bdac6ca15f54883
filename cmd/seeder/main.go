package main

import (
	"context"
	"log"

	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/shrimpcod/RealTimeChat/internal/database"
	"github.com/shrimpcod/RealTimeChat/internal/realtime"
	"github.com/shrimpcod/RealTimeChat/internal/seeds"
	"github.com/shrimpcod/RealTimeChat/internal/services"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
)

func main() {
	config.LoadConfig()
	logger.Init(config.AppConfig.Env)
	database.Connect()
	ctx := context.Background()

	log.Println("🔄 Running migrations (just in case)...")
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	users, err := seeds.SeedUsers(ctx, database.DB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// nobody is connected; fan-out goes to an empty session table
	engine := services.NewChatEngine(database.DB, realtime.NewSessionManager())
	if _, err := seeds.SeedDemoChat(ctx, engine, users); err != nil {
		log.Fatalf("❌ Failed to seed chat: %v", err)
	}

	log.Printf("✅ Seeding complete. Log in as alice@example.com / %s", seeds.DemoPassword)
}
