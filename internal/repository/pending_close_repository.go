package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// PendingClose is a warning timer left behind by the category-based sweep
// of earlier releases.
type PendingClose struct {
	ChannelID string
	WarnedAt  time.Time
}

// PendingCloseRepository reads and clears the legacy pending_closes table.
type PendingCloseRepository interface {
	Load(ctx context.Context) ([]PendingClose, error)
	Clear(ctx context.Context) error
}

type pendingCloseRepository struct {
	store  persistence.Store
	logger *zap.Logger
}

func NewPendingCloseRepository(store persistence.Store, logger *zap.Logger) PendingCloseRepository {
	return &pendingCloseRepository{store: store, logger: logger}
}

func (r *pendingCloseRepository) Load(ctx context.Context) ([]PendingClose, error) {
	records, err := r.store.Load(ctx, persistence.TablePendingCloses)
	if err != nil {
		return nil, err
	}
	out := make([]PendingClose, 0, len(records))
	for _, record := range records {
		var at time.Time
		if err := json.Unmarshal(record.Value, &at); err != nil {
			r.logger.Warn("skipping unreadable pending close", zap.String("channel_id", record.Key), zap.Error(err))
			continue
		}
		out = append(out, PendingClose{ChannelID: record.Key, WarnedAt: at})
	}
	return out, nil
}

func (r *pendingCloseRepository) Clear(ctx context.Context) error {
	return r.store.Save(ctx, persistence.TablePendingCloses, nil)
}
