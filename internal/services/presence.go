package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shrimpcod/RealTimeChat/internal/models"
	"github.com/shrimpcod/RealTimeChat/internal/repository"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// PresenceTracker persists online state and tells every peer of the user.
type PresenceTracker struct {
	db     *gorm.DB
	repo   *repository.ChatRepository
	fanout Fanout
	now    func() time.Time
	log    zerolog.Logger
}

func NewPresenceTracker(db *gorm.DB, fanout Fanout, opts ...Option) *PresenceTracker {
	o := buildOptions(opts)
	return &PresenceTracker{
		db:     db,
		repo:   repository.NewChatRepository(db),
		fanout: fanout,
		now:    o.now,
		log:    logger.Component("presence"),
	}
}

func (p *PresenceTracker) Connected(ctx context.Context, userID string) (*models.UserStatusPayload, error) {
	return p.transition(ctx, userID, true)
}

func (p *PresenceTracker) Disconnected(ctx context.Context, userID string) (*models.UserStatusPayload, error) {
	return p.transition(ctx, userID, false)
}

// transition stores the new state, then computes the peer set fresh so it
// reflects the user's current chats.
func (p *PresenceTracker) transition(ctx context.Context, userID string, online bool) (*models.UserStatusPayload, error) {
	ctx, span := startSpan(ctx, "PresenceTracker.Transition",
		attribute.String("user.id", userID), attribute.Bool("online", online))
	defer span.End()

	status := models.UserStatusPayload{UserID: userID, IsOnline: online, LastSeen: p.now()}
	if err := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"is_online": online,
			"last_seen": status.LastSeen,
		}).Error; err != nil {
		span.RecordError(err)
		return nil, err
	}

	peers, err := p.repo.PeerIDs(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, peer := range peers {
		p.fanout.BroadcastToUser(peer, models.EventUserStatusChanged, status)
	}

	p.log.Debug().Str("user_id", userID).Bool("online", online).Int("peers", len(peers)).Msg("Presence changed")
	return &status, nil
}

// ResetAll marks every user offline. No connection survives a restart, so
// the process calls this once before accepting sockets.
func (p *PresenceTracker) ResetAll(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		UpdateColumns(map[string]interface{}{
			"is_online": false,
			"last_seen": p.now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		p.log.Info().Int64("users", res.RowsAffected).Msg("Cleared stale presence")
	}
	return res.RowsAffected, nil
}
