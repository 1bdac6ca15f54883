package seeds

import (
	"context"
	"fmt"
	"log"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/services"
)

type line struct {
	from int
	text string
}

var demoConversation = []line{
	{0, "Hey Bob! Did the deploy go out?"},
	{1, "Yep, about ten minutes ago."},
	{0, "Nice, the chat list already shows it on top."},
}

// SeedDemoChat opens the alice/bob private chat through the engine and
// writes a short conversation when the chat is new.
func SeedDemoChat(ctx context.Context, engine *services.ChatEngine, users []models.User) (*models.ChatSummary, error) {
	if len(users) < 2 {
		return nil, fmt.Errorf("need two users, got %d", len(users))
	}
	log.Println("💬 Seeding demo chat...")

	pair := []models.User{users[0], users[1]}
	chat, created, err := engine.CreateDirectChat(ctx, pair[0].ID, pair[1].ID)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Printf("   ✅ Chat already exists: %s", chat.ID)
		return chat, nil
	}

	for _, l := range demoConversation {
		if _, err := engine.SendMessage(ctx, pair[l.from].ID, chat.ID, l.text); err != nil {
			return nil, fmt.Errorf("seed message: %w", err)
		}
	}
	log.Printf("   ✅ Chat created with %d messages: %s", len(demoConversation), chat.ID)
	return chat, nil
}
