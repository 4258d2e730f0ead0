package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// LedgerReader lists lifetime spend per user.
type LedgerReader interface {
	Entries() []domain.LedgerEntry
}

// TierReport summarizes one tier sweep.
type TierReport struct {
	Updated int
	Skipped int
	Errors  int
}

// TierWorker keeps each spender's tier role in line with the ledger.
type TierWorker struct {
	ledger   LedgerReader
	platform platform.Platform
	tiers    []domain.Tier
	guildID  string
	clock    clock.Clock
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// TierDependencies bundles collaborators for the tier sweep. Tiers must be
// sorted by threshold, highest first.
type TierDependencies struct {
	Ledger   LedgerReader
	Platform platform.Platform
	Tiers    []domain.Tier
	GuildID  string
	Clock    clock.Clock
	Interval time.Duration
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewTierWorker creates the worker.
func NewTierWorker(deps TierDependencies) *TierWorker {
	return &TierWorker{
		ledger:   deps.Ledger,
		platform: deps.Platform,
		tiers:    deps.Tiers,
		guildID:  deps.GuildID,
		clock:    deps.Clock,
		interval: deps.Interval,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Run sweeps on every interval until ctx is done.
func (w *TierWorker) Run(ctx context.Context) error {
	if len(w.tiers) == 0 {
		w.logger.Info("no spend tiers configured; tier sweep disabled")
		<-ctx.Done()
		return nil
	}
	return runEvery(ctx, w.clock, w.interval, "tier", w.logger, func(ctx context.Context) {
		w.Sweep(ctx)
	})
}

// Sweep reconciles tier roles for every ledger entry. Users below every
// threshold and users who left the guild are skipped.
func (w *TierWorker) Sweep(ctx context.Context) TierReport {
	started := w.clock.Now()
	var report TierReport

	for _, entry := range w.ledger.Entries() {
		if ctx.Err() != nil {
			break
		}
		target, ok := domain.HighestTier(w.tiers, entry.Spent)
		if !ok {
			report.Skipped++
			continue
		}
		changed, err := w.reconcile(ctx, entry.UserID, target)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			report.Skipped++
		case err != nil:
			report.Errors++
			w.logger.Warn("tier sweep item failed", zap.String("user_id", entry.UserID), zap.Error(err))
		case changed:
			report.Updated++
		}
	}

	w.metrics.RecordSweep("tier", w.clock.Now().Sub(started), report.Errors)
	if report.Updated+report.Errors > 0 {
		w.logger.Info("tier sweep finished",
			zap.Int("updated", report.Updated),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors))
	}
	return report
}

func (w *TierWorker) reconcile(ctx context.Context, userID string, target domain.Tier) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("tier sweep item panicked", zap.String("user_id", userID), zap.Any("panic", r))
			err = errPanicked
		}
	}()

	member, err := w.platform.Member(ctx, w.guildID, userID)
	if err != nil {
		return false, err
	}
	for _, tier := range w.tiers {
		if tier.RoleID == target.RoleID || !member.HasRole(tier.RoleID) {
			continue
		}
		if err := w.platform.RemoveRole(ctx, w.guildID, userID, tier.RoleID); err != nil {
			return changed, err
		}
		changed = true
	}
	if !member.HasRole(target.RoleID) {
		if err := w.platform.AddRole(ctx, w.guildID, userID, target.RoleID); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}
