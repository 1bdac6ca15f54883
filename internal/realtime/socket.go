package realtime

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/rs/zerolog"
	"github.com/shrimpcod/RealTimeChat/internal/services"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
)

const (
	namespace        = "/"
	operationTimeout = 10 * time.Second
)

// Client originated events.
const (
	EventSendMessage   = "sendMessage"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventJoinChatRoom  = "joinChatRoom"
	EventLeaveChatRoom = "leaveChatRoom"
)

var (
	errAuthRequired = errors.New("authentication required")
	errInvalidToken = errors.New("invalid token")
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*utils.Claims, error)
}

type Limiter interface {
	Allow(ctx context.Context, userID string) bool
}

// MessageID accepts a message id sent either as a JSON number or string.
type MessageID uint64

func (id *MessageID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = MessageID(v)
	return nil
}

type SendMessageRequest struct {
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

type EditMessageRequest struct {
	MessageID MessageID `json:"messageId"`
	NewText   string    `json:"newText"`
	ChatID    string    `json:"chatId,omitempty"`
}

type DeleteMessageRequest struct {
	MessageID MessageID `json:"messageId"`
	ChatID    string    `json:"chatId,omitempty"`
}

// Ack is the reply to every client event: {status, message} or {error}.
type Ack struct {
	Status  string      `json:"status,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func okAck(message interface{}) Ack {
	return Ack{Status: "ok", Message: message}
}

func errAck(err error) Ack {
	return Ack{Error: apperrors.As(err).Message}
}

type SocketDeps struct {
	Sessions       *SessionManager
	Engine         *services.ChatEngine
	Presence       *services.PresenceTracker
	Verifier       TokenVerifier
	Limiter        Limiter
	AllowedOrigins []string
}

// SocketServer adapts socket.io connections to the chat engine.
type SocketServer struct {
	server   *socketio.Server
	sessions *SessionManager
	engine   *services.ChatEngine
	presence *services.PresenceTracker
	verifier TokenVerifier
	limiter  Limiter
	origins  map[string]bool
	log      zerolog.Logger
}

func NewSocketServer(deps SocketDeps) *SocketServer {
	s := &SocketServer{
		sessions: deps.Sessions,
		engine:   deps.Engine,
		presence: deps.Presence,
		verifier: deps.Verifier,
		limiter:  deps.Limiter,
		origins:  make(map[string]bool),
		log:      logger.Component("socket"),
	}
	for _, o := range deps.AllowedOrigins {
		s.origins[strings.TrimRight(o, "/")] = true
	}

	s.server = socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: s.checkOrigin},
			&polling.Transport{CheckOrigin: s.checkOrigin},
		},
	})
	s.routes()
	return s
}

// checkOrigin allows any origin when none is configured or "*" is listed.
func (s *SocketServer) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 || s.origins["*"] {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || s.origins[strings.TrimRight(origin, "/")]
}

func (s *SocketServer) routes() {
	s.server.OnConnect(namespace, func(c socketio.Conn) error {
		c.SetContext("")
		u := c.URL()
		return s.connect(c, tokenFromHandshake(u.Query(), c.RemoteHeader()))
	})

	s.server.OnEvent(namespace, EventSendMessage, func(c socketio.Conn, req SendMessageRequest) Ack {
		return s.handleSendMessage(c.ID(), req)
	})
	s.server.OnEvent(namespace, EventEditMessage, func(c socketio.Conn, req EditMessageRequest) Ack {
		return s.handleEditMessage(c.ID(), req)
	})
	s.server.OnEvent(namespace, EventDeleteMessage, func(c socketio.Conn, req DeleteMessageRequest) Ack {
		return s.handleDeleteMessage(c.ID(), req)
	})
	s.server.OnEvent(namespace, EventJoinChatRoom, func(c socketio.Conn, chatID string) Ack {
		return s.handleJoinChatRoom(c.ID(), chatID)
	})
	s.server.OnEvent(namespace, EventLeaveChatRoom, func(c socketio.Conn, chatID string) Ack {
		return s.handleLeaveChatRoom(c.ID(), chatID)
	})

	s.server.OnError(namespace, func(c socketio.Conn, err error) {
		ev := s.log.Warn().Err(err)
		if c != nil {
			ev = ev.Str("conn_id", c.ID())
		}
		ev.Msg("Socket error")
	})
	s.server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		s.disconnect(c.ID(), reason)
	})
}

// tokenFromHandshake reads the token from ?token=, ?auth_token= or a
// Bearer Authorization header, in that order.
func tokenFromHandshake(query url.Values, header http.Header) string {
	if t := query.Get("token"); t != "" {
		return t
	}
	if t := query.Get("auth_token"); t != "" {
		return t
	}
	auth := header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func (s *SocketServer) connect(conn Conn, token string) error {
	if token == "" {
		s.log.Warn().Str("conn_id", conn.ID()).Msg("Socket connection rejected: no token")
		return errAuthRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	claims, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		s.log.Warn().Str("conn_id", conn.ID()).Err(err).Msg("Socket connection rejected: invalid token")
		return errInvalidToken
	}

	if sc, ok := conn.(socketio.Conn); ok {
		sc.SetContext(claims.UserID)
	}
	s.sessions.Register(conn, claims.UserID)
	if _, err := s.presence.Connected(ctx, claims.UserID); err != nil {
		s.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to record presence on connect")
	}

	s.log.Info().Str("conn_id", conn.ID()).Str("user_id", claims.UserID).Msg("Socket authenticated")
	return nil
}

// disconnect drops every room the connection held, then marks the user
// offline once their last socket is gone.
func (s *SocketServer) disconnect(connID, reason string) {
	userID := s.sessions.Unregister(connID)
	if userID == "" {
		return
	}
	if s.sessions.isOnline(userID) {
		s.log.Info().Str("conn_id", connID).Str("user_id", userID).Str("reason", reason).Msg("Socket disconnected, user still has open sockets")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	if _, err := s.presence.Disconnected(ctx, userID); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to record presence on disconnect")
	}
	s.log.Info().Str("conn_id", connID).Str("user_id", userID).Str("reason", reason).Msg("Socket disconnected")
}

// caller resolves the authenticated user of connID.
func (s *SocketServer) caller(connID string) (string, error) {
	userID, ok := s.sessions.UserID(connID)
	if !ok {
		return "", apperrors.Unauthorized("Not authenticated")
	}
	return userID, nil
}

func (s *SocketServer) handleSendMessage(connID string, req SendMessageRequest) Ack {
	userID, err := s.caller(connID)
	if err != nil {
		return errAck(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if s.limiter != nil && !s.limiter.Allow(ctx, userID) {
		return errAck(apperrors.ErrRateLimit)
	}
	msg, err := s.engine.SendMessage(ctx, userID, req.ChatID, req.Text)
	if err != nil {
		return errAck(err)
	}
	return okAck(msg)
}

func (s *SocketServer) handleEditMessage(connID string, req EditMessageRequest) Ack {
	userID, err := s.caller(connID)
	if err != nil {
		return errAck(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	msg, err := s.engine.EditMessage(ctx, userID, req.ChatID, uint64(req.MessageID), req.NewText)
	if err != nil {
		return errAck(err)
	}
	return okAck(msg)
}

func (s *SocketServer) handleDeleteMessage(connID string, req DeleteMessageRequest) Ack {
	userID, err := s.caller(connID)
	if err != nil {
		return errAck(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	payload, err := s.engine.DeleteMessage(ctx, userID, req.ChatID, uint64(req.MessageID))
	if err != nil {
		return errAck(err)
	}
	return okAck(payload)
}

func (s *SocketServer) handleJoinChatRoom(connID, chatID string) Ack {
	userID, err := s.caller(connID)
	if err != nil {
		return errAck(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	receipt, err := s.engine.JoinChatRoom(ctx, connID, userID, chatID)
	if err != nil {
		return errAck(err)
	}
	return okAck(receipt)
}

func (s *SocketServer) handleLeaveChatRoom(connID, chatID string) Ack {
	if _, err := s.caller(connID); err != nil {
		return errAck(err)
	}
	s.engine.LeaveChatRoom(connID, chatID)
	return okAck("Left chat " + chatID)
}

// Run serves socket.io until ctx is cancelled.
func (s *SocketServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve() }()

	select {
	case <-ctx.Done():
		if err := s.server.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Socket server close failed")
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler mounts socket.io on a gin route.
func (s *SocketServer) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.server.ServeHTTP(c.Writer, c.Request)
	}
}
