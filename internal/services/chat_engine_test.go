package services

import (
	"context"
	"testing"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/testutil"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type engineFixture struct {
	db     *gorm.DB
	hub    *testutil.RecordingHub
	engine *ChatEngine
	alice  models.User
	bob    models.User
	carol  models.User
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := testutil.NewDB(t)
	hub := testutil.NewRecordingHub()
	clock := testutil.NewClock()
	return &engineFixture{
		db:     db,
		hub:    hub,
		engine: NewChatEngine(db, hub, WithClock(clock.Now)),
		alice:  testutil.CreateUser(t, db, "alice"),
		bob:    testutil.CreateUser(t, db, "bob"),
		carol:  testutil.CreateUser(t, db, "carol"),
	}
}

func (f *engineFixture) directChat(t *testing.T) models.ChatSummary {
	t.Helper()
	chat, _, err := f.engine.CreateDirectChat(context.Background(), f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	f.hub.Reset()
	return *chat
}

func (f *engineFixture) summaryFor(t *testing.T, userID, chatID string) models.ChatSummary {
	t.Helper()
	chats, err := f.engine.ListChats(context.Background(), userID)
	require.NoError(t, err)
	for _, c := range chats {
		if c.ID == chatID {
			return c
		}
	}
	t.Fatalf("chat %s not listed for %s", chatID, userID)
	return models.ChatSummary{}
}

func TestDirectChatConversation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	chat, created, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, chat.Name)
	assert.Equal(t, "bob", *chat.Name)
	require.Len(t, chat.Participants, 1)
	assert.Equal(t, f.bob.ID, chat.Participants[0].ID)

	pushed := f.hub.ToUser(f.bob.ID, models.EventCreateChat)
	require.Len(t, pushed, 1)
	forBob := pushed[0].(models.ChatSummary)
	assert.Equal(t, chat.ID, forBob.ID)
	require.NotNil(t, forBob.Name)
	assert.Equal(t, "alice", *forBob.Name)
	assert.Empty(t, f.hub.ToUser(f.alice.ID, models.EventCreateChat))

	msg, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "  hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.TextContent)

	inRoom := f.hub.ToRoom(chat.ID, models.EventNewMessage)
	require.Len(t, inRoom, 1)
	assert.Equal(t, msg.ID, inRoom[0].(models.Message).ID)

	updates := f.hub.ToUser(f.bob.ID, models.EventChatUpdate)
	require.Len(t, updates, 1)
	update := updates[0].(models.ChatSummary)
	require.NotNil(t, update.LastMessage)
	assert.Equal(t, "hello", update.LastMessage.TextContent)
	assert.Equal(t, int64(1), update.UnreadCount)
	require.NotNil(t, update.Name)
	assert.Equal(t, "alice", *update.Name)
	assert.Empty(t, f.hub.ToUser(f.alice.ID, models.EventChatUpdate), "sender gets no chatUpdate")

	assert.Equal(t, int64(1), f.summaryFor(t, f.bob.ID, chat.ID).UnreadCount)
	assert.Equal(t, int64(0), f.summaryFor(t, f.alice.ID, chat.ID).UnreadCount)

	receipt, err := f.engine.MarkChatRead(ctx, f.bob.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, receipt.ChatID)
	assert.Equal(t, int64(0), f.summaryFor(t, f.bob.ID, chat.ID).UnreadCount)
}

func TestCreateDirectChatIsIdempotentPerPair(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, created, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.engine.CreateDirectChat(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Name)
	assert.Equal(t, "alice", *second.Name)

	var n int64
	require.NoError(t, f.db.Model(&models.Chat{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	assert.Len(t, f.hub.ToUser(f.bob.ID, models.EventCreateChat), 1, "existing chat is not announced again")
}

func TestCreateDirectChatConcurrentCallsYieldOneChat(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	ids := make([]string, 2)
	var g errgroup.Group
	g.Go(func() error {
		c, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
		if err == nil {
			ids[0] = c.ID
		}
		return err
	})
	g.Go(func() error {
		c, _, err := f.engine.CreateDirectChat(ctx, f.bob.ID, f.alice.ID)
		if err == nil {
			ids[1] = c.ID
		}
		return err
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, ids[0], ids[1])

	var n int64
	require.NoError(t, f.db.Model(&models.Chat{}).Where("type = ?", models.ChatTypePrivate).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCreateDirectChatValidation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.alice.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, _, err = f.engine.CreateDirectChat(ctx, f.alice.ID, "")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, _, err = f.engine.CreateDirectChat(ctx, f.alice.ID, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestSendMessageTouchesChatActivity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	msg, err := f.engine.SendMessage(ctx, f.bob.ID, chat.ID, "hi")
	require.NoError(t, err)

	var stored models.Chat
	require.NoError(t, f.db.Where("id = ?", chat.ID).Take(&stored).Error)
	assert.True(t, stored.UpdatedAt.Equal(msg.CreatedAt))
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newEngineFixture(t)
	chat := f.directChat(t)

	_, err := f.engine.SendMessage(context.Background(), f.alice.ID, chat.ID, "   ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Empty(t, f.hub.Deliveries)
}

func TestNonParticipantIsRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	msg, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "secret")
	require.NoError(t, err)
	f.hub.Reset()

	_, err = f.engine.SendMessage(ctx, f.carol.ID, chat.ID, "let me in")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "send")

	_, err = f.engine.EditMessage(ctx, f.carol.ID, chat.ID, msg.ID, "mine now")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "edit")

	_, err = f.engine.DeleteMessage(ctx, f.carol.ID, chat.ID, msg.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "delete")

	_, err = f.engine.JoinChatRoom(ctx, "conn-carol", f.carol.ID, chat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "join")
	assert.Empty(t, f.hub.Joined["conn-carol"])

	_, err = f.engine.MarkChatRead(ctx, f.carol.ID, chat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "mark read")

	_, err = f.engine.History(ctx, f.carol.ID, chat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "history")

	err = f.engine.DeleteChat(ctx, f.carol.ID, chat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "delete chat")

	assert.Empty(t, f.hub.Deliveries)
	var n int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestEditThenDeleteMessage(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	original, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "first draft")
	require.NoError(t, err)

	edited, err := f.engine.EditMessage(ctx, f.alice.ID, chat.ID, original.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, original.ID, edited.ID)
	assert.Equal(t, original.ChatID, edited.ChatID)
	assert.Equal(t, original.SenderID, edited.SenderID)
	assert.True(t, original.CreatedAt.Equal(edited.CreatedAt))
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.UpdatedAt)
	assert.True(t, edited.UpdatedAt.After(original.CreatedAt))

	pushed := f.hub.ToRoom(chat.ID, models.EventMessageEdited)
	require.Len(t, pushed, 1)
	assert.Equal(t, "edited", pushed[0].(models.Message).TextContent)
	assert.True(t, pushed[0].(models.Message).IsEdited)

	_, err = f.engine.EditMessage(ctx, f.bob.ID, chat.ID, original.ID, "hijack")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = f.engine.DeleteMessage(ctx, f.bob.ID, chat.ID, original.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	payload, err := f.engine.DeleteMessage(ctx, f.alice.ID, chat.ID, original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeleteMessagePayload{MessageID: original.ID, ChatID: chat.ID}, *payload)
	assert.Equal(t, []any{*payload}, f.hub.ToRoom(chat.ID, models.EventDeleteMessage))

	history, err := f.engine.History(ctx, f.bob.ID, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
	assert.Nil(t, history.FirstUnreadID)

	_, err = f.engine.DeleteMessage(ctx, f.alice.ID, chat.ID, original.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestEditMessageScopedToChat(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)
	other, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.carol.ID)
	require.NoError(t, err)

	msg, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "hello")
	require.NoError(t, err)

	_, err = f.engine.EditMessage(ctx, f.alice.ID, other.ID, msg.ID, "moved")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	edited, err := f.engine.EditMessage(ctx, f.alice.ID, "", msg.ID, "unscoped")
	require.NoError(t, err)
	assert.Equal(t, "unscoped", edited.TextContent)
}

func TestEditMessageSameTextIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	msg, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "hi")
	require.NoError(t, err)
	f.hub.Reset()

	same, err := f.engine.EditMessage(ctx, f.alice.ID, chat.ID, msg.ID, "  hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", same.TextContent)
	assert.False(t, same.IsEdited)
	assert.Nil(t, same.UpdatedAt)
	assert.Empty(t, f.hub.ToRoom(chat.ID, models.EventMessageEdited))

	var stored models.Message
	require.NoError(t, f.db.First(&stored, msg.ID).Error)
	assert.False(t, stored.IsEdited)
}

func TestHistoryFirstUnread(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	_, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "one")
	require.NoError(t, err)
	_, err = f.engine.MarkChatRead(ctx, f.bob.ID, chat.ID)
	require.NoError(t, err)
	_, err = f.engine.SendMessage(ctx, f.bob.ID, chat.ID, "reply")
	require.NoError(t, err)
	third, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "two")
	require.NoError(t, err)

	history, err := f.engine.History(ctx, f.bob.ID, chat.ID)
	require.NoError(t, err)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, "one", history.Messages[0].TextContent)
	assert.Equal(t, "two", history.Messages[2].TextContent)
	require.NotNil(t, history.FirstUnreadID)
	assert.Equal(t, third.ID, *history.FirstUnreadID)
	assert.Equal(t, int64(1), f.summaryFor(t, f.bob.ID, chat.ID).UnreadCount)

	mine, err := f.engine.History(ctx, f.alice.ID, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, mine.FirstUnreadID)
	assert.Equal(t, history.Messages[1].ID, *mine.FirstUnreadID)
}

func TestJoinChatRoomAdvancesReadCursor(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	_, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "ping")
	require.NoError(t, err)
	require.Equal(t, int64(1), f.summaryFor(t, f.bob.ID, chat.ID).UnreadCount)

	receipt, err := f.engine.JoinChatRoom(ctx, "conn-bob", f.bob.ID, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, receipt.ChatID)
	assert.Equal(t, []string{chat.ID}, f.hub.Joined["conn-bob"])
	bobView := f.summaryFor(t, f.bob.ID, chat.ID)
	assert.Equal(t, int64(0), bobView.UnreadCount)
	require.NotNil(t, bobView.LastReadAt)
	assert.True(t, bobView.LastReadAt.Equal(receipt.LastReadAt), "ack carries the stored cursor")

	f.engine.LeaveChatRoom("conn-bob", chat.ID)
	assert.Empty(t, f.hub.Joined["conn-bob"])
}

func TestJoinChatRoomUnknownConnection(t *testing.T) {
	f := newEngineFixture(t)
	chat := f.directChat(t)
	f.hub.KnownConns = map[string]bool{}

	_, err := f.engine.SendMessage(context.Background(), f.alice.ID, chat.ID, "ping")
	require.NoError(t, err)

	_, err = f.engine.JoinChatRoom(context.Background(), "ghost", f.bob.ID, chat.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthentication))

	var p models.ChatParticipant
	require.NoError(t, f.db.Where("chat_id = ? AND user_id = ?", chat.ID, f.bob.ID).Take(&p).Error)
	assert.Nil(t, p.LastReadAt, "rejected join keeps the read cursor")
	assert.Equal(t, int64(1), f.summaryFor(t, f.bob.ID, chat.ID).UnreadCount)
}

func TestDeleteChatNotifiesFormerParticipants(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	chat := f.directChat(t)

	_, err := f.engine.SendMessage(ctx, f.alice.ID, chat.ID, "bye")
	require.NoError(t, err)
	f.hub.Reset()

	require.NoError(t, f.engine.DeleteChat(ctx, f.bob.ID, chat.ID))

	assert.Equal(t, []string{chat.ID}, f.hub.Cleared)
	want := []any{models.DeleteChatPayload{ChatID: chat.ID}}
	assert.Equal(t, want, f.hub.ToUser(f.alice.ID, models.EventDeleteChat))
	assert.Equal(t, want, f.hub.ToUser(f.bob.ID, models.EventDeleteChat))
	assert.Empty(t, f.hub.ToRoom(chat.ID, models.EventDeleteChat))

	for _, model := range []any{&models.Chat{}, &models.ChatParticipant{}, &models.Message{}} {
		var n int64
		require.NoError(t, f.db.Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}

	chats, err := f.engine.ListChats(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestListChatsOrderedByLatestActivity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	withBob, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	withCarol, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.carol.ID)
	require.NoError(t, err)

	chats, err := f.engine.ListChats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, withCarol.ID, chats[0].ID)

	_, err = f.engine.SendMessage(ctx, f.bob.ID, withBob.ID, "bump")
	require.NoError(t, err)

	chats, err = f.engine.ListChats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, withBob.ID, chats[0].ID)
	require.NotNil(t, chats[0].Name)
	assert.Equal(t, "bob", *chats[0].Name)
	assert.Equal(t, int64(1), chats[0].UnreadCount)
}
