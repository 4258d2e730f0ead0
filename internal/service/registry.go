package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ChannelResolver answers whether a channel still exists on the platform.
type ChannelResolver interface {
	ChannelExists(ctx context.Context, channelID string) (bool, error)
}

// TicketRegistry is the in-memory mirror of the tickets table. Every
// mutation is persisted before it returns; a failed write is rolled back.
type TicketRegistry struct {
	mu        sync.Mutex
	repo      repository.TicketRepository
	order     []string
	byChannel map[string]domain.Ticket
	logger    *zap.Logger
}

// NewTicketRegistry loads the persisted tickets.
func NewTicketRegistry(ctx context.Context, repo repository.TicketRepository, logger *zap.Logger) (*TicketRegistry, error) {
	tickets, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	r := &TicketRegistry{
		repo:      repo,
		byChannel: make(map[string]domain.Ticket, len(tickets)),
		logger:    logger,
	}
	for _, t := range tickets {
		r.order = append(r.order, t.ChannelID)
		r.byChannel[t.ChannelID] = t
	}
	logger.Info("ticket registry loaded", zap.Int("tickets", len(tickets)))
	return r, nil
}

// FindByChannel returns the ticket bound to channelID.
func (r *TicketRegistry) FindByChannel(channelID string) (domain.Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byChannel[channelID]
	return t, ok
}

// OwnedBy returns the tracked tickets of ownerID.
func (r *TicketRegistry) OwnedBy(ownerID string) []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, id := range r.order {
		if t := r.byChannel[id]; t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot returns every tracked ticket in creation order.
func (r *TicketRegistry) Snapshot() []domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Ticket, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byChannel[id])
	}
	return out
}

// Prune drops the owner's tickets whose channels no longer exist and
// returns how many remain. A lookup failure keeps the ticket.
func (r *TicketRegistry) Prune(ctx context.Context, ownerID string, resolver ChannelResolver) (int, error) {
	owned := r.OwnedBy(ownerID)

	var gone []string
	for _, t := range owned {
		exists, err := resolver.ChannelExists(ctx, t.ChannelID)
		if err != nil {
			r.logger.Warn("channel lookup failed; keeping ticket",
				zap.String("channel_id", t.ChannelID), zap.Error(err))
			continue
		}
		if !exists {
			gone = append(gone, t.ChannelID)
		}
	}
	if len(gone) > 0 {
		if err := r.removeMany(ctx, gone); err != nil {
			return 0, err
		}
		r.logger.Info("pruned stale tickets", zap.String("owner_id", ownerID), zap.Strings("channel_ids", gone))
	}
	return len(owned) - len(gone), nil
}

// LiveCount returns the number of tracked tickets for ownerID.
func (r *TicketRegistry) LiveCount(ownerID string) int {
	return len(r.OwnedBy(ownerID))
}

// Insert tracks a new ticket. Channel ids are never reused.
func (r *TicketRegistry) Insert(ctx context.Context, t domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byChannel[t.ChannelID]; exists {
		return apperrors.NewConflict("channel already tracks a ticket", map[string]any{"channel_id": t.ChannelID})
	}
	r.order = append(r.order, t.ChannelID)
	r.byChannel[t.ChannelID] = t
	return r.commitLocked(ctx, func() {
		delete(r.byChannel, t.ChannelID)
		r.order = r.order[:len(r.order)-1]
	})
}

// Remove stops tracking channelID. Removing an unknown channel is a no-op.
func (r *TicketRegistry) Remove(ctx context.Context, channelID string) (domain.Ticket, bool, error) {
	r.mu.Lock()
	t, ok := r.byChannel[channelID]
	r.mu.Unlock()
	if !ok {
		return domain.Ticket{}, false, nil
	}
	if err := r.removeMany(ctx, []string{channelID}); err != nil {
		return domain.Ticket{}, false, err
	}
	return t, true, nil
}

// Touch records activity at now. A message from the owner also clears any
// pending inactivity warning. It reports whether channelID is a ticket.
func (r *TicketRegistry) Touch(ctx context.Context, channelID, authorID string, now time.Time) (bool, error) {
	return r.update(ctx, channelID, func(t *domain.Ticket) {
		t.LastActivityAt = now
		if authorID == t.OwnerID {
			t.Warned = false
			t.WarnTime = nil
		}
	})
}

// MarkWarned records that an inactivity warning was posted at at.
func (r *TicketRegistry) MarkWarned(ctx context.Context, channelID string, at time.Time) (bool, error) {
	return r.update(ctx, channelID, func(t *domain.Ticket) {
		warnAt := at
		t.Warned = true
		t.WarnTime = &warnAt
	})
}

// ClearWarning cancels a pending inactivity warning.
func (r *TicketRegistry) ClearWarning(ctx context.Context, channelID string, now time.Time) (bool, error) {
	return r.update(ctx, channelID, func(t *domain.Ticket) {
		t.Warned = false
		t.WarnTime = nil
		t.LastActivityAt = now
	})
}

// SetStatus moves the ticket to status.
func (r *TicketRegistry) SetStatus(ctx context.Context, channelID string, status domain.TicketStatus) (bool, error) {
	return r.update(ctx, channelID, func(t *domain.Ticket) {
		t.Status = status
	})
}

// ImportPendingCloses folds warning timers from the legacy pending-close
// table into the matching tickets and reports how many were applied.
func (r *TicketRegistry) ImportPendingCloses(ctx context.Context, pending []repository.PendingClose) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := make(map[string]domain.Ticket)
	for _, p := range pending {
		t, ok := r.byChannel[p.ChannelID]
		if !ok {
			continue
		}
		previous[p.ChannelID] = t
		warnAt := p.WarnedAt
		t.Warned = true
		t.WarnTime = &warnAt
		r.byChannel[p.ChannelID] = t
	}
	if len(previous) == 0 {
		return 0, nil
	}
	err := r.commitLocked(ctx, func() {
		for id, t := range previous {
			r.byChannel[id] = t
		}
	})
	if err != nil {
		return 0, err
	}
	return len(previous), nil
}

func (r *TicketRegistry) update(ctx context.Context, channelID string, mutate func(*domain.Ticket)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before, ok := r.byChannel[channelID]
	if !ok {
		return false, nil
	}
	after := before
	mutate(&after)
	r.byChannel[channelID] = after
	if err := r.commitLocked(ctx, func() { r.byChannel[channelID] = before }); err != nil {
		return true, err
	}
	return true, nil
}

func (r *TicketRegistry) removeMany(ctx context.Context, channelIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevOrder := append([]string(nil), r.order...)
	removed := make(map[string]domain.Ticket, len(channelIDs))
	for _, id := range channelIDs {
		if t, ok := r.byChannel[id]; ok {
			removed[id] = t
			delete(r.byChannel, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	kept := r.order[:0:0]
	for _, id := range r.order {
		if _, gone := removed[id]; !gone {
			kept = append(kept, id)
		}
	}
	r.order = kept
	return r.commitLocked(ctx, func() {
		r.order = prevOrder
		for id, t := range removed {
			r.byChannel[id] = t
		}
	})
}

// commitLocked persists the current state, calling undo if the write fails.
func (r *TicketRegistry) commitLocked(ctx context.Context, undo func()) error {
	tickets := make([]domain.Ticket, 0, len(r.order))
	for _, id := range r.order {
		tickets = append(tickets, r.byChannel[id])
	}
	if err := r.repo.Save(ctx, tickets); err != nil {
		undo()
		return apperrors.NewUnavailable("Could not save ticket state.", err)
	}
	return nil
}
