package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/services"
	"github.com/shrimpcod/RealTimeChat/internal/testutil"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(_ context.Context, token string) (*utils.Claims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	return &utils.Claims{UserID: userID}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

type socketFixture struct {
	db       *gorm.DB
	server   *SocketServer
	sessions *SessionManager
	engine   *services.ChatEngine
	alice    models.User
	bob      models.User
	carol    models.User
}

func newSocketFixture(t *testing.T) *socketFixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock()
	sessions := NewSessionManager()
	engine := services.NewChatEngine(db, sessions, services.WithClock(clock.Now))
	presence := services.NewPresenceTracker(db, sessions, services.WithClock(clock.Now))

	f := &socketFixture{
		db:       db,
		sessions: sessions,
		engine:   engine,
		alice:    testutil.CreateUser(t, db, "alice"),
		bob:      testutil.CreateUser(t, db, "bob"),
		carol:    testutil.CreateUser(t, db, "carol"),
	}
	f.server = NewSocketServer(SocketDeps{
		Sessions: sessions,
		Engine:   engine,
		Presence: presence,
		Verifier: staticVerifier{
			"token-alice": f.alice.ID,
			"token-bob":   f.bob.ID,
			"token-carol": f.carol.ID,
		},
	})
	return f
}

func (f *socketFixture) connect(t *testing.T, id, token string) *fakeConn {
	t.Helper()
	conn := newFakeConn(id)
	require.NoError(t, f.server.connect(conn, token))
	return conn
}

func TestConnectRequiresValidToken(t *testing.T) {
	f := newSocketFixture(t)

	assert.ErrorIs(t, f.server.connect(newFakeConn("c1"), ""), errAuthRequired)
	assert.ErrorIs(t, f.server.connect(newFakeConn("c2"), "forged"), errInvalidToken)
	assert.Zero(t, f.sessions.connectionCount())

	ack := f.server.handleSendMessage("c1", SendMessageRequest{ChatID: "x", Text: "hi"})
	assert.Equal(t, "Not authenticated", ack.Error)
}

func TestSocketConversationFanOut(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	aliceConn := f.connect(t, "c-alice", "token-alice")
	bobConn := f.connect(t, "c-bob", "token-bob")
	carolConn := f.connect(t, "c-carol", "token-carol")

	chat, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, bobConn.received(models.EventCreateChat), 1)

	ack := f.server.handleJoinChatRoom("c-alice", chat.ID)
	require.Empty(t, ack.Error)
	ack = f.server.handleJoinChatRoom("c-carol", chat.ID)
	assert.NotEmpty(t, ack.Error)

	ack = f.server.handleSendMessage("c-alice", SendMessageRequest{ChatID: chat.ID, Text: "hello"})
	require.Empty(t, ack.Error)
	assert.Equal(t, "ok", ack.Status)
	sent := ack.Message.(*models.Message)
	assert.Equal(t, "hello", sent.TextContent)

	assert.Len(t, aliceConn.received(models.EventNewMessage), 1)
	assert.Empty(t, bobConn.received(models.EventNewMessage), "bob has not joined the room")
	updates := bobConn.received(models.EventChatUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "hello", updates[0].(models.ChatSummary).LastMessage.TextContent)

	ack = f.server.handleJoinChatRoom("c-bob", chat.ID)
	require.Empty(t, ack.Error)
	receipt := ack.Message.(*models.ReadReceipt)
	assert.Equal(t, chat.ID, receipt.ChatID)
	assert.False(t, receipt.LastReadAt.IsZero())

	ack = f.server.handleEditMessage("c-alice", EditMessageRequest{MessageID: MessageID(sent.ID), NewText: "edited"})
	require.Empty(t, ack.Error)
	edits := bobConn.received(models.EventMessageEdited)
	require.Len(t, edits, 1)
	assert.Equal(t, "edited", edits[0].(models.Message).TextContent)
	assert.True(t, edits[0].(models.Message).IsEdited)

	ack = f.server.handleDeleteMessage("c-bob", DeleteMessageRequest{MessageID: MessageID(sent.ID)})
	assert.NotEmpty(t, ack.Error, "only the sender may delete")

	ack = f.server.handleDeleteMessage("c-alice", DeleteMessageRequest{MessageID: MessageID(sent.ID)})
	require.Empty(t, ack.Error)
	deletions := bobConn.received(models.EventDeleteMessage)
	require.Len(t, deletions, 1)
	assert.Equal(t, models.DeleteMessagePayload{MessageID: sent.ID, ChatID: chat.ID}, deletions[0])

	for _, event := range []string{models.EventNewMessage, models.EventMessageEdited, models.EventDeleteMessage, models.EventChatUpdate} {
		assert.Empty(t, carolConn.received(event), event)
	}
}

func TestLeaveAndDisconnect(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	aliceConn := f.connect(t, "c-alice", "token-alice")
	f.connect(t, "c-bob", "token-bob")
	chat, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	require.Empty(t, f.server.handleJoinChatRoom("c-bob", chat.ID).Error)
	assert.Equal(t, 1, f.sessions.roomSize(chat.ID))

	ack := f.server.handleLeaveChatRoom("c-bob", chat.ID)
	assert.Equal(t, "ok", ack.Status)
	assert.Zero(t, f.sessions.roomSize(chat.ID))

	require.Empty(t, f.server.handleJoinChatRoom("c-bob", chat.ID).Error)
	aliceConn.reset()
	f.server.disconnect("c-bob", "transport close")

	assert.Zero(t, f.sessions.roomSize(chat.ID))
	assert.False(t, f.sessions.isOnline(f.bob.ID))
	statuses := aliceConn.received(models.EventUserStatusChanged)
	require.Len(t, statuses, 1)
	status := statuses[0].(models.UserStatusPayload)
	assert.Equal(t, f.bob.ID, status.UserID)
	assert.False(t, status.IsOnline)
}

func TestDisconnectWithAnotherSocketOpen(t *testing.T) {
	f := newSocketFixture(t)
	ctx := context.Background()

	aliceConn := f.connect(t, "c-alice", "token-alice")
	f.connect(t, "c-bob-phone", "token-bob")
	f.connect(t, "c-bob-laptop", "token-bob")
	_, _, err := f.engine.CreateDirectChat(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	aliceConn.reset()

	f.server.disconnect("c-bob-phone", "transport close")
	assert.True(t, f.sessions.isOnline(f.bob.ID))
	assert.Empty(t, aliceConn.received(models.EventUserStatusChanged))

	var bob models.User
	require.NoError(t, f.db.First(&bob, "id = ?", f.bob.ID).Error)
	assert.True(t, bob.IsOnline)

	f.server.disconnect("c-bob-laptop", "transport close")
	assert.False(t, f.sessions.isOnline(f.bob.ID))
	statuses := aliceConn.received(models.EventUserStatusChanged)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].(models.UserStatusPayload).IsOnline)

	require.NoError(t, f.db.First(&bob, "id = ?", f.bob.ID).Error)
	assert.False(t, bob.IsOnline)
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newSocketFixture(t)
	f.server.limiter = denyAll{}
	f.connect(t, "c-alice", "token-alice")
	chat, _, err := f.engine.CreateDirectChat(context.Background(), f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	ack := f.server.handleSendMessage("c-alice", SendMessageRequest{ChatID: chat.ID, Text: "spam"})
	assert.Equal(t, apperrors.ErrRateLimit.Message, ack.Error)
}

func TestMessageIDAcceptsNumberOrString(t *testing.T) {
	var req EditMessageRequest
	require.NoError(t, json.Unmarshal([]byte(`{"messageId":42,"newText":"x"}`), &req))
	assert.Equal(t, MessageID(42), req.MessageID)

	require.NoError(t, json.Unmarshal([]byte(`{"messageId":"43"}`), &req))
	assert.Equal(t, MessageID(43), req.MessageID)

	assert.Error(t, json.Unmarshal([]byte(`{"messageId":"abc"}`), &req))
}

func TestTokenFromHandshake(t *testing.T) {
	assert.Equal(t, "a", tokenFromHandshake(url.Values{"token": {"a"}, "auth_token": {"b"}}, nil))
	assert.Equal(t, "b", tokenFromHandshake(url.Values{"auth_token": {"b"}}, http.Header{}))

	h := http.Header{}
	h.Set("Authorization", "Bearer c")
	assert.Equal(t, "c", tokenFromHandshake(url.Values{}, h))
	assert.Equal(t, "", tokenFromHandshake(url.Values{}, http.Header{}))
}

func TestCheckOrigin(t *testing.T) {
	s := &SocketServer{origins: map[string]bool{"https://chat.example.com": true}}
	r, _ := http.NewRequest(http.MethodGet, "/socket.io/", nil)
	r.Header.Set("Origin", "https://chat.example.com/")
	assert.True(t, s.checkOrigin(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, s.checkOrigin(r))
}
