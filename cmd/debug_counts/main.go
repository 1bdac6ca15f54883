package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/shrimpcod/RealTimeChat/internal/database"
	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/repository"
	"github.com/shrimpcod/RealTimeChat/internal/syncstore"
)

// Prints table counts and, for one user, compares each chat's stored unread
// count with the count the client mirror derives from the full history.
func main() {
	email := flag.String("email", "", "user whose chats to check")
	flag.Parse()

	config.LoadConfig()
	database.Connect()
	db := database.DB
	ctx := context.Background()

	for _, m := range database.Models() {
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			log.Fatalf("count %T: %v", m, err)
		}
		fmt.Printf("%-26T %d\n", m, n)
	}
	var online int64
	db.Model(&models.User{}).Where("is_online = ?", true).Count(&online)
	fmt.Printf("%-26s %d\n", "online users", online)

	if *email == "" {
		return
	}

	var user models.User
	if err := db.Where("email = ?", *email).Take(&user).Error; err != nil {
		log.Fatalf("User %s not found: %v", *email, err)
	}
	fmt.Printf("\nChats of %s (%s)\n", user.Username, user.ID)

	repo := repository.NewChatRepository(db)
	chats, err := repo.ListSummaries(ctx, user.ID)
	if err != nil {
		log.Fatalf("list chats: %v", err)
	}

	drift := 0
	for _, c := range chats {
		msgs, err := repo.Messages(ctx, c.ID)
		if err != nil {
			log.Fatalf("messages of %s: %v", c.ID, err)
		}
		derived := syncstore.UnreadCount(msgs, c.LastReadAt, user.ID)
		mark := ""
		if derived != c.UnreadCount {
			mark = "  MISMATCH"
			drift++
		}
		fmt.Printf("%s  messages=%d unread=%d derived=%d%s\n", c.ID, len(msgs), c.UnreadCount, derived, mark)
	}
	if drift > 0 {
		log.Fatalf("%d chats disagree on unread count", drift)
	}
}
