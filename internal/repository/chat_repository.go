package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shrimpcod/RealTimeChat/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// summaryConcurrency bounds the per-chat queries run while listing chats.
const summaryConcurrency = 4

// ChatRepository translates store rows into chat views.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *ChatRepository) WithTx(tx *gorm.DB) *ChatRepository {
	return &ChatRepository{db: tx}
}

func (r *ChatRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).Where("id = ?", chatID).Take(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindParticipant returns the membership row or nil when userID is not a
// member of chatID.
func (r *ChatRepository) FindParticipant(ctx context.Context, chatID, userID string) (*models.ChatParticipant, error) {
	var p models.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ChatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&n).Error
	return n > 0, err
}

// FindPrivateChat looks up the private chat shared by a and b through their
// participant rows.
func (r *ChatRepository) FindPrivateChat(ctx context.Context, a, b string) (*models.Chat, error) {
	var chat models.Chat
	res := r.db.WithContext(ctx).
		Table("chats AS c").
		Select("c.*").
		Joins("JOIN chat_participants AS cp1 ON cp1.chat_id = c.id").
		Joins("JOIN chat_participants AS cp2 ON cp2.chat_id = c.id").
		Where("c.type = ? AND cp1.user_id = ? AND cp2.user_id = ?", models.ChatTypePrivate, a, b).
		Order("c.created_at ASC").
		Limit(1).
		Scan(&chat)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || chat.ID == "" {
		return nil, nil
	}
	return &chat, nil
}

func (r *ChatRepository) ParticipantIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Participants returns the roster of chatID with presence fields.
func (r *ChatRepository) Participants(ctx context.Context, chatID string) ([]models.ParticipantInfo, error) {
	out := []models.ParticipantInfo{}
	err := r.db.WithContext(ctx).
		Table("chat_participants AS cp").
		Select("u.id, u.username, u.avatar_url, u.is_online, u.last_seen").
		Joins("JOIN users AS u ON u.id = cp.user_id").
		Where("cp.chat_id = ?", chatID).
		Order("cp.joined_at ASC, u.username ASC").
		Scan(&out).Error
	return out, err
}

// PeerIDs returns the distinct other users across every chat userID is in.
func (r *ChatRepository) PeerIDs(ctx context.Context, userID string) ([]string, error) {
	db := r.db.WithContext(ctx)
	chats := db.Model(&models.ChatParticipant{}).Select("chat_id").Where("user_id = ?", userID)

	var ids []string
	err := db.Model(&models.ChatParticipant{}).
		Distinct().
		Where("chat_id IN (?)", chats).
		Where("user_id <> ?", userID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ChatRepository) GetMessage(ctx context.Context, messageID uint64) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Where("id = ?", messageID).Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages returns the history of chatID in insertion order.
func (r *ChatRepository) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	out := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *ChatRepository) LastMessage(ctx context.Context, chatID string) (*models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&msgs).Error
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// unreadScope selects messages of chatID newer than the cursor and not sent
// by userID. A nil cursor means nothing has been read yet.
func (r *ChatRepository) unreadScope(ctx context.Context, chatID, userID string, lastReadAt *time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chatID).
		Where("(sender_id IS NULL OR sender_id <> ?)", userID)
	if lastReadAt != nil {
		q = q.Where("created_at > ?", *lastReadAt)
	}
	return q
}

func (r *ChatRepository) UnreadCount(ctx context.Context, chatID, userID string, lastReadAt *time.Time) (int64, error) {
	var n int64
	err := r.unreadScope(ctx, chatID, userID, lastReadAt).Count(&n).Error
	return n, err
}

func (r *ChatRepository) FirstUnreadID(ctx context.Context, chatID, userID string, lastReadAt *time.Time) (*uint64, error) {
	var ids []uint64
	err := r.unreadScope(ctx, chatID, userID, lastReadAt).
		Order("created_at ASC, id ASC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

// BaseSummary assembles the viewer independent part of a summary: roster
// and last message.
func (r *ChatRepository) BaseSummary(ctx context.Context, chat models.Chat) (models.ChatSummary, error) {
	summary := models.NewChatSummary(chat)

	participants, err := r.Participants(ctx, chat.ID)
	if err != nil {
		return summary, err
	}
	summary.Participants = participants

	last, err := r.LastMessage(ctx, chat.ID)
	if err != nil {
		return summary, err
	}
	summary.LastMessage = last
	return summary, nil
}

// ApplyViewer fills the read cursor and unread count of viewerID.
func (r *ChatRepository) ApplyViewer(ctx context.Context, summary *models.ChatSummary, viewerID string) error {
	p, err := r.FindParticipant(ctx, summary.ID, viewerID)
	if err != nil || p == nil {
		return err
	}
	summary.LastReadAt = p.LastReadAt
	if summary.LastMessage == nil {
		summary.UnreadCount = 0
		return nil
	}
	summary.UnreadCount, err = r.UnreadCount(ctx, summary.ID, viewerID, p.LastReadAt)
	return err
}

// Summary builds the complete view of one chat for viewerID.
func (r *ChatRepository) Summary(ctx context.Context, chat models.Chat, viewerID string) (models.ChatSummary, error) {
	summary, err := r.BaseSummary(ctx, chat)
	if err != nil {
		return summary, err
	}
	err = r.ApplyViewer(ctx, &summary, viewerID)
	return summary, err
}

// ListSummaries returns every chat of userID ordered by latest activity.
func (r *ChatRepository) ListSummaries(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	db := r.db.WithContext(ctx)
	var chats []models.Chat
	err := db.
		Where("id IN (?)", db.Model(&models.ChatParticipant{}).Select("chat_id").Where("user_id = ?", userID)).
		Order("updated_at DESC, id ASC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatSummary, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i := range chats {
		chat := chats[i]
		g.Go(func() error {
			summary, err := r.Summary(gctx, chat, userID)
			if err != nil {
				return err
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
