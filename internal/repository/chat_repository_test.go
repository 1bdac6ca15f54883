package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func seedChat(t *testing.T, db *gorm.DB, typ models.ChatType, updated time.Time, members ...string) models.Chat {
	t.Helper()
	chat := models.Chat{Type: typ, CreatedAt: updated, UpdatedAt: updated}
	if typ == models.ChatTypePrivate {
		key := models.PrivatePairKey(members[0], members[1])
		chat.PairKey = &key
	}
	require.NoError(t, db.Create(&chat).Error)
	for _, m := range members {
		require.NoError(t, db.Create(&models.ChatParticipant{ChatID: chat.ID, UserID: m, JoinedAt: updated}).Error)
	}
	return chat
}

func seedMessage(t *testing.T, db *gorm.DB, chatID, senderID, text string, created time.Time) models.Message {
	t.Helper()
	msg := models.Message{ChatID: chatID, SenderID: &senderID, ContentType: models.ContentTypeText, TextContent: text, CreatedAt: created}
	require.NoError(t, db.Create(&msg).Error)
	return msg
}

func TestFindPrivateChatMatchesEitherOrder(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	chat := seedChat(t, db, models.ChatTypePrivate, at(0), alice.ID, bob.ID)

	found, err := repo.FindPrivateChat(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID)

	none, err := repo.FindPrivateChat(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindPrivateChatIgnoresGroups(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChatRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	seedChat(t, db, models.ChatTypeGroup, at(0), alice.ID, bob.ID)

	found, err := repo.FindPrivateChat(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPeerIDsAreDistinctAndExcludeSelf(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChatRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	dave := testutil.CreateUser(t, db, "dave")
	seedChat(t, db, models.ChatTypePrivate, at(0), alice.ID, bob.ID)
	seedChat(t, db, models.ChatTypeGroup, at(1), alice.ID, bob.ID, carol.ID)
	seedChat(t, db, models.ChatTypePrivate, at(2), carol.ID, dave.ID)

	peers, err := repo.PeerIDs(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{bob.ID, carol.ID}, peers)
}

func TestUnreadCountAndFirstUnread(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	chat := seedChat(t, db, models.ChatTypePrivate, at(0), alice.ID, bob.ID)

	seedMessage(t, db, chat.ID, alice.ID, "hi", at(1))
	m2 := seedMessage(t, db, chat.ID, bob.ID, "hey", at(2))
	seedMessage(t, db, chat.ID, alice.ID, "how are you", at(3))
	m4 := seedMessage(t, db, chat.ID, bob.ID, "fine", at(4))

	// no cursor: everything not sent by alice
	n, err := repo.UnreadCount(ctx, chat.ID, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := repo.FirstUnreadID(ctx, chat.ID, alice.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, m2.ID, *first)

	cursor := at(3)
	n, err = repo.UnreadCount(ctx, chat.ID, alice.ID, &cursor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	first, err = repo.FirstUnreadID(ctx, chat.ID, alice.ID, &cursor)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, m4.ID, *first)

	cursor = at(10)
	first, err = repo.FirstUnreadID(ctx, chat.ID, alice.ID, &cursor)
	require.NoError(t, err)
	assert.Nil(t, first)
}

func TestListSummariesOrderedByActivity(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	older := seedChat(t, db, models.ChatTypePrivate, at(10), alice.ID, bob.ID)
	newer := seedChat(t, db, models.ChatTypePrivate, at(20), alice.ID, carol.ID)
	seedMessage(t, db, older.ID, bob.ID, "old news", at(5))

	summaries, err := repo.ListSummaries(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, newer.ID, summaries[0].ID)
	assert.Nil(t, summaries[0].LastMessage)
	assert.Equal(t, int64(0), summaries[0].UnreadCount)

	assert.Equal(t, older.ID, summaries[1].ID)
	require.NotNil(t, summaries[1].LastMessage)
	assert.Equal(t, "old news", summaries[1].LastMessage.TextContent)
	assert.Equal(t, int64(1), summaries[1].UnreadCount)
	assert.Len(t, summaries[1].Participants, 2)

	none, err := repo.ListSummaries(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
