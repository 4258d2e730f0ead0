package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// Action is what the inactivity sweep does with one ticket.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionClose:
		return "close"
	default:
		return "none"
	}
}

// Decide applies the warn-then-close policy to one ticket.
func Decide(t domain.Ticket, now time.Time, warnAfter, grace time.Duration) Action {
	if age, warned := t.WarnedFor(now); warned {
		if age >= grace {
			return ActionClose
		}
		return ActionNone
	}
	if t.IdleFor(now) >= warnAfter {
		return ActionWarn
	}
	return ActionNone
}

// TicketLifecycle is the part of the ticket service the sweep drives.
type TicketLifecycle interface {
	Tickets() []domain.Ticket
	WarnInactive(ctx context.Context, channelID string) error
	AutoClose(ctx context.Context, channelID string) (service.CloseResult, error)
}

// SweepReport summarizes one inactivity sweep.
type SweepReport struct {
	Warned int
	Closed int
	Errors int
}

// InactivityWorker warns idle tickets and closes those whose warning has
// expired.
type InactivityWorker struct {
	tickets TicketLifecycle
	clock   clock.Clock
	policy  config.PolicyConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInactivityWorker creates the worker.
func NewInactivityWorker(tickets TicketLifecycle, c clock.Clock, policy config.PolicyConfig, metrics *observability.Metrics, logger *zap.Logger) *InactivityWorker {
	return &InactivityWorker{tickets: tickets, clock: c, policy: policy, metrics: metrics, logger: logger}
}

// Run sweeps on every interval until ctx is done.
func (w *InactivityWorker) Run(ctx context.Context) error {
	return runEvery(ctx, w.clock, w.policy.InactivitySweepInterval, "inactivity", w.logger, func(ctx context.Context) {
		w.Sweep(ctx)
	})
}

// Sweep makes one pass over every open ticket. A failing ticket is logged
// and skipped.
func (w *InactivityWorker) Sweep(ctx context.Context) SweepReport {
	started := w.clock.Now()
	var report SweepReport

	for _, t := range w.tickets.Tickets() {
		if ctx.Err() != nil {
			break
		}
		now := w.clock.Now().UTC()
		action := Decide(t, now, w.policy.InactivityWarnAfter, w.policy.InactivityGrace)
		if action == ActionNone {
			continue
		}
		if err := w.apply(ctx, action, t.ChannelID); err != nil {
			report.Errors++
			w.logger.Warn("inactivity sweep item failed",
				zap.String("channel_id", t.ChannelID),
				zap.String("action", action.String()),
				zap.Error(err))
			continue
		}
		if action == ActionWarn {
			report.Warned++
		} else {
			report.Closed++
		}
	}

	w.metrics.RecordSweep("inactivity", w.clock.Now().Sub(started), report.Errors)
	if report.Warned+report.Closed+report.Errors > 0 {
		w.logger.Info("inactivity sweep finished",
			zap.Int("warned", report.Warned),
			zap.Int("closed", report.Closed),
			zap.Int("errors", report.Errors))
	}
	return report
}

func (w *InactivityWorker) apply(ctx context.Context, action Action, channelID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("inactivity sweep item panicked", zap.String("channel_id", channelID), zap.Any("panic", r))
			err = errPanicked
		}
	}()
	if action == ActionWarn {
		return w.tickets.WarnInactive(ctx, channelID)
	}
	_, err = w.tickets.AutoClose(ctx, channelID)
	return err
}
