package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/repository"
	apperrors "github.com/shrimpcod/RealTimeChat/pkg/errors"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
	"github.com/shrimpcod/RealTimeChat/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("chat-engine")

var (
	errNotMember       = apperrors.Forbidden("Not a member of this chat")
	errMessageNotFound = apperrors.NotFound("Message not found")
)

// ChatEngine applies chat intents to the store and fans the resulting deltas
// out through the hub. Membership and ownership are re-read from the store on
// every call.
type ChatEngine struct {
	db   *gorm.DB
	repo *repository.ChatRepository
	hub  Hub
	now  func() time.Time
	log  zerolog.Logger
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock replaces the time source used for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewChatEngine(db *gorm.DB, hub Hub, opts ...Option) *ChatEngine {
	o := buildOptions(opts)
	return &ChatEngine{
		db:   db,
		repo: repository.NewChatRepository(db),
		hub:  hub,
		now:  o.now,
		log:  logger.Component("chat-engine"),
	}
}

func (e *ChatEngine) Repository() *repository.ChatRepository {
	return e.repo
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// fail records err on the span and converts it to an AppError. Store errors
// are logged here with their cause and reach the caller as a generic error.
func (e *ChatEngine) fail(span trace.Span, op string, err error) error {
	appErr := apperrors.As(err)
	span.RecordError(err)
	if appErr.Kind == apperrors.KindStore {
		span.SetStatus(codes.Error, op)
		e.log.Error().Err(err).Str("op", op).Msg("Store operation failed")
	}
	return appErr
}

// CreateDirectChat returns the private chat between requesterID and
// otherUserID, creating it when absent. created is false when the chat
// already existed.
func (e *ChatEngine) CreateDirectChat(ctx context.Context, requesterID, otherUserID string) (*models.ChatSummary, bool, error) {
	ctx, span := startSpan(ctx, "ChatEngine.CreateDirectChat",
		attribute.String("user.id", requesterID), attribute.String("peer.id", otherUserID))
	defer span.End()

	if otherUserID == "" {
		return nil, false, apperrors.BadRequest("Receiver is required")
	}
	if requesterID == otherUserID {
		return nil, false, apperrors.BadRequest("Cannot create a chat with yourself")
	}

	other, err := e.repo.GetUser(ctx, otherUserID)
	if err != nil {
		return nil, false, e.fail(span, "create_chat", err)
	}
	if other == nil {
		return nil, false, apperrors.NotFound("Recipient user not found")
	}

	existing, err := e.repo.FindPrivateChat(ctx, requesterID, otherUserID)
	if err != nil {
		return nil, false, e.fail(span, "create_chat", err)
	}
	if existing != nil {
		return e.viewOf(ctx, span, *existing, requesterID)
	}

	now := e.now()
	key := models.PrivatePairKey(requesterID, otherUserID)
	chat := models.Chat{
		Type:            models.ChatTypePrivate,
		CreatedByUserID: &requesterID,
		PairKey:         &key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		return tx.Create(&[]models.ChatParticipant{
			{ChatID: chat.ID, UserID: requesterID, JoinedAt: now},
			{ChatID: chat.ID, UserID: otherUserID, JoinedAt: now},
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// the other side won the race; its chat is the pair's chat
		e.log.Debug().Str("pair", key).Msg("Concurrent private chat creation resolved to existing chat")
		winner, ferr := e.repo.FindPrivateChat(ctx, requesterID, otherUserID)
		if ferr != nil {
			return nil, false, e.fail(span, "create_chat", ferr)
		}
		if winner == nil {
			return nil, false, apperrors.Conflict("Chat is being created, please retry")
		}
		return e.viewOf(ctx, span, *winner, requesterID)
	}
	if err != nil {
		return nil, false, e.fail(span, "create_chat", err)
	}

	base, err := e.repo.BaseSummary(ctx, chat)
	if err != nil {
		return nil, false, e.fail(span, "create_chat", err)
	}

	e.hub.BroadcastToUser(otherUserID, models.EventCreateChat, ShapeFor(base, otherUserID))

	e.log.Info().Str("chat_id", chat.ID).Str("user_id", requesterID).Str("peer_id", otherUserID).Msg("Private chat created")
	out := ShapeFor(base, requesterID)
	return &out, true, nil
}

func (e *ChatEngine) viewOf(ctx context.Context, span trace.Span, chat models.Chat, viewerID string) (*models.ChatSummary, bool, error) {
	summary, err := e.repo.Summary(ctx, chat, viewerID)
	if err != nil {
		return nil, false, e.fail(span, "chat_summary", err)
	}
	out := ShapeFor(summary, viewerID)
	return &out, false, nil
}

// SendMessage appends text to chatID on behalf of senderID. The full message
// goes to the chat room; every other participant gets a chatUpdate on their
// personal channel.
func (e *ChatEngine) SendMessage(ctx context.Context, senderID, chatID, text string) (*models.Message, error) {
	ctx, span := startSpan(ctx, "ChatEngine.SendMessage",
		attribute.String("user.id", senderID), attribute.String("chat.id", chatID))
	defer span.End()

	if chatID == "" {
		return nil, apperrors.BadRequest("Chat id is required")
	}
	text, err := utils.SanitizeMessageText(text)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	var msg models.Message
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := e.repo.WithTx(tx).IsParticipant(ctx, chatID, senderID)
		if err != nil {
			return err
		}
		if !member {
			return errNotMember
		}

		msg = models.Message{
			ChatID:      chatID,
			SenderID:    &senderID,
			ContentType: models.ContentTypeText,
			TextContent: text,
			CreatedAt:   e.now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chatID).
			UpdateColumn("updated_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, e.fail(span, "send_message", err)
	}

	e.hub.BroadcastToRoom(chatID, models.EventNewMessage, msg)
	e.fanOutChatUpdate(ctx, chatID, senderID, msg)

	e.log.Debug().Str("chat_id", chatID).Str("user_id", senderID).Uint64("message_id", msg.ID).Msg("Message sent")
	return &msg, nil
}

// fanOutChatUpdate runs after commit; failures are logged, never returned.
func (e *ChatEngine) fanOutChatUpdate(ctx context.Context, chatID, senderID string, msg models.Message) {
	chat, err := e.repo.GetChat(ctx, chatID)
	if err != nil || chat == nil {
		e.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to load chat for chatUpdate")
		return
	}
	participants, err := e.repo.Participants(ctx, chatID)
	if err != nil {
		e.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to load participants for chatUpdate")
		return
	}

	base := models.NewChatSummary(*chat)
	base.Participants = participants
	base.LastMessage = &msg

	for _, p := range participants {
		if p.ID == senderID {
			continue
		}
		delta := base
		if err := e.repo.ApplyViewer(ctx, &delta, p.ID); err != nil {
			e.log.Warn().Err(err).Str("chat_id", chatID).Str("user_id", p.ID).Msg("Unread count unavailable for chatUpdate")
		}
		e.hub.BroadcastToUser(p.ID, models.EventChatUpdate, ShapeFor(delta, p.ID))
	}
}

// loadOwnedMessage fetches messageID inside tx and checks that userID sent
// it. A non-empty chatID must match the message's chat.
func (e *ChatEngine) loadOwnedMessage(ctx context.Context, tx *gorm.DB, userID, chatID string, messageID uint64, denied string) (*models.Message, error) {
	msg, err := e.repo.WithTx(tx).GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || (chatID != "" && msg.ChatID != chatID) {
		return nil, errMessageNotFound
	}
	if !msg.SentBy(userID) {
		return nil, apperrors.Forbidden(denied)
	}
	return msg, nil
}

// EditMessage replaces the text of a message owned by editorID. Pass an
// empty chatID when the caller does not scope the message to a chat.
func (e *ChatEngine) EditMessage(ctx context.Context, editorID, chatID string, messageID uint64, newText string) (*models.Message, error) {
	ctx, span := startSpan(ctx, "ChatEngine.EditMessage",
		attribute.String("user.id", editorID), attribute.Int64("message.id", int64(messageID)))
	defer span.End()

	if messageID == 0 {
		return nil, apperrors.BadRequest("Message id is required")
	}
	text, err := utils.SanitizeMessageText(newText)
	if err != nil {
		return nil, apperrors.BadRequest(err.Error())
	}

	var msg *models.Message
	unchanged := false
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		msg, err = e.loadOwnedMessage(ctx, tx, editorID, chatID, messageID, "You can only edit your own messages")
		if err != nil {
			return err
		}
		if msg.TextContent == text {
			unchanged = true
			return nil
		}

		now := e.now()
		if err := tx.Model(&models.Message{}).Where("id = ?", msg.ID).UpdateColumns(map[string]interface{}{
			"text_content": text,
			"is_edited":    true,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		msg.TextContent = text
		msg.IsEdited = true
		msg.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, e.fail(span, "edit_message", err)
	}
	if unchanged {
		return msg, nil
	}

	e.hub.BroadcastToRoom(msg.ChatID, models.EventMessageEdited, *msg)
	e.log.Debug().Str("chat_id", msg.ChatID).Str("user_id", editorID).Uint64("message_id", msg.ID).Msg("Message edited")
	return msg, nil
}

// DeleteMessage hard deletes a message owned by requesterID.
func (e *ChatEngine) DeleteMessage(ctx context.Context, requesterID, chatID string, messageID uint64) (*models.DeleteMessagePayload, error) {
	ctx, span := startSpan(ctx, "ChatEngine.DeleteMessage",
		attribute.String("user.id", requesterID), attribute.Int64("message.id", int64(messageID)))
	defer span.End()

	if messageID == 0 {
		return nil, apperrors.BadRequest("Message id is required")
	}

	var payload models.DeleteMessagePayload
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := e.loadOwnedMessage(ctx, tx, requesterID, chatID, messageID, "You can only delete your own messages")
		if err != nil {
			return err
		}
		payload = models.DeleteMessagePayload{MessageID: msg.ID, ChatID: msg.ChatID}
		return tx.Where("id = ?", msg.ID).Delete(&models.Message{}).Error
	})
	if err != nil {
		return nil, e.fail(span, "delete_message", err)
	}

	e.hub.BroadcastToRoom(payload.ChatID, models.EventDeleteMessage, payload)
	e.log.Debug().Str("chat_id", payload.ChatID).Str("user_id", requesterID).Uint64("message_id", payload.MessageID).Msg("Message deleted")
	return &payload, nil
}

// DeleteChat removes chatID with its participants and messages, then tells
// every former participant on their personal channel.
func (e *ChatEngine) DeleteChat(ctx context.Context, requesterID, chatID string) error {
	ctx, span := startSpan(ctx, "ChatEngine.DeleteChat",
		attribute.String("user.id", requesterID), attribute.String("chat.id", chatID))
	defer span.End()

	var former []string
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		member, err := repo.IsParticipant(ctx, chatID, requesterID)
		if err != nil {
			return err
		}
		if !member {
			return apperrors.Forbidden("Access denied")
		}
		if former, err = repo.ParticipantIDs(ctx, chatID); err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.ChatParticipant{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", chatID).Delete(&models.Chat{}).Error
	})
	if err != nil {
		return e.fail(span, "delete_chat", err)
	}

	e.hub.ClearRoom(chatID)
	payload := models.DeleteChatPayload{ChatID: chatID}
	for _, userID := range former {
		e.hub.BroadcastToUser(userID, models.EventDeleteChat, payload)
	}

	e.log.Info().Str("chat_id", chatID).Str("user_id", requesterID).Int("participants", len(former)).Msg("Chat deleted")
	return nil
}

// MarkChatRead moves userID's read cursor in chatID to now.
func (e *ChatEngine) MarkChatRead(ctx context.Context, userID, chatID string) (*models.ReadReceipt, error) {
	ctx, span := startSpan(ctx, "ChatEngine.MarkChatRead",
		attribute.String("user.id", userID), attribute.String("chat.id", chatID))
	defer span.End()

	now, err := e.advanceCursor(ctx, userID, chatID)
	if err != nil {
		return nil, e.fail(span, "mark_read", err)
	}
	return &models.ReadReceipt{ChatID: chatID, LastReadAt: now}, nil
}

func (e *ChatEngine) advanceCursor(ctx context.Context, userID, chatID string) (time.Time, error) {
	now := e.now()
	res := e.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("last_read_at", now)
	if res.Error != nil {
		return now, res.Error
	}
	if res.RowsAffected == 0 {
		return now, errNotMember
	}
	return now, nil
}

// JoinChatRoom subscribes connID to chatID's room. Joining implies reading,
// so the read cursor advances once the subscription holds. A rejected join
// leaves both the room and the cursor untouched.
func (e *ChatEngine) JoinChatRoom(ctx context.Context, connID, userID, chatID string) (*models.ReadReceipt, error) {
	ctx, span := startSpan(ctx, "ChatEngine.JoinChatRoom",
		attribute.String("user.id", userID), attribute.String("chat.id", chatID))
	defer span.End()

	if chatID == "" {
		return nil, apperrors.BadRequest("Chat id is required")
	}
	member, err := e.repo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, e.fail(span, "join_room", err)
	}
	if !member {
		return nil, errNotMember
	}
	if err := e.hub.JoinRoom(connID, chatID); err != nil {
		return nil, apperrors.Unauthorized("Not authenticated")
	}

	now, err := e.advanceCursor(ctx, userID, chatID)
	if err != nil {
		e.hub.LeaveRoom(connID, chatID)
		return nil, e.fail(span, "join_room", err)
	}
	e.log.Debug().Str("chat_id", chatID).Str("user_id", userID).Str("conn_id", connID).Msg("Joined chat room")
	return &models.ReadReceipt{ChatID: chatID, LastReadAt: now}, nil
}

// LeaveChatRoom unsubscribes connID from chatID's room unconditionally.
func (e *ChatEngine) LeaveChatRoom(connID, chatID string) {
	e.hub.LeaveRoom(connID, chatID)
}

// ListChats returns userID's chats, most recently active first.
func (e *ChatEngine) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	ctx, span := startSpan(ctx, "ChatEngine.ListChats", attribute.String("user.id", userID))
	defer span.End()

	summaries, err := e.repo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, e.fail(span, "list_chats", err)
	}
	out := make([]models.ChatSummary, len(summaries))
	for i, s := range summaries {
		out[i] = ShapeFor(s, userID)
	}
	return out, nil
}

// History returns chatID's messages and the first one userID has not read.
func (e *ChatEngine) History(ctx context.Context, userID, chatID string) (*models.MessageHistory, error) {
	ctx, span := startSpan(ctx, "ChatEngine.History",
		attribute.String("user.id", userID), attribute.String("chat.id", chatID))
	defer span.End()

	p, err := e.repo.FindParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, e.fail(span, "history", err)
	}
	if p == nil {
		return nil, apperrors.Forbidden("Access to this chat's messages is denied")
	}

	messages, err := e.repo.Messages(ctx, chatID)
	if err != nil {
		return nil, e.fail(span, "history", err)
	}
	first, err := e.repo.FirstUnreadID(ctx, chatID, userID, p.LastReadAt)
	if err != nil {
		return nil, e.fail(span, "history", err)
	}
	return &models.MessageHistory{Messages: messages, FirstUnreadID: first}, nil
}
