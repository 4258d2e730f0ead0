package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// LedgerService tracks lifetime spend per user.
type LedgerService struct {
	mu         sync.Mutex
	order      []string
	spent      map[string]decimal.Decimal
	repo       repository.LedgerRepository
	authz      *auth.Authorizer
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// LedgerDependencies bundles collaborators for the ledger.
type LedgerDependencies struct {
	Repo       repository.LedgerRepository
	Authorizer *auth.Authorizer
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewLedgerService loads the persisted ledger.
func NewLedgerService(ctx context.Context, deps LedgerDependencies) (*LedgerService, error) {
	entries, err := deps.Repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	s := &LedgerService{
		spent:      make(map[string]decimal.Decimal, len(entries)),
		repo:       deps.Repo,
		authz:      deps.Authorizer,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	for _, e := range entries {
		if _, seen := s.spent[e.UserID]; !seen {
			s.order = append(s.order, e.UserID)
		}
		s.spent[e.UserID] = e.Spent
	}
	return s, nil
}

// Credit adds amount to the user's lifetime spend and returns the new total.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError("Amount must not be negative.", nil)
	}
	return s.apply(ctx, userID, amount)
}

// Debit subtracts amount, flooring the total at zero.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError("Amount must not be negative.", nil)
	}
	return s.apply(ctx, userID, amount.Neg())
}

func (s *LedgerService) apply(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	prev, existed := s.spent[userID]
	next := prev.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	s.spent[userID] = next
	if !existed {
		s.order = append(s.order, userID)
	}
	if err := s.repo.Save(ctx, s.entriesLocked()); err != nil {
		if existed {
			s.spent[userID] = prev
		} else {
			delete(s.spent, userID)
			s.order = s.order[:len(s.order)-1]
		}
		s.mu.Unlock()
		return decimal.Zero, apperrors.NewUnavailable("Could not save the ledger.", err)
	}
	s.mu.Unlock()

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventLedgerAdjusted,
			Timestamp: s.clock.Now().UTC(),
			Payload:   events.LedgerAdjustedPayload{UserID: userID, Delta: delta, Total: next},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)),
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return next, nil
}

// Total returns the lifetime spend of userID, zero when unknown.
func (s *LedgerService) Total(userID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spent[userID]
}

// TopK returns the k highest spenders. Ties keep discovery order.
func (s *LedgerService) TopK(k int) []domain.LedgerEntry {
	if k <= 0 {
		return nil
	}
	entries := s.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Spent.GreaterThan(entries[j].Spent)
	})
	if len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// Entries returns every ledger entry in discovery order.
func (s *LedgerService) Entries() []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesLocked()
}

func (s *LedgerService) entriesLocked() []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, domain.LedgerEntry{UserID: id, Spent: s.spent[id]})
	}
	return out
}

// Info returns a user's total for staff.
func (s *LedgerService) Info(actor domain.Actor, userID string) (decimal.Decimal, error) {
	if err := s.authz.RequireStaff(actor); err != nil {
		return decimal.Zero, err
	}
	return s.Total(userID), nil
}

// Adjust is the staff balance correction behind addbal and subbal.
func (s *LedgerService) Adjust(ctx context.Context, actor domain.Actor, userID, rawAmount string, credit bool) (decimal.Decimal, error) {
	if err := s.authz.RequireStaff(actor); err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, apperrors.NewValidationError("Amount must be a positive number.", nil)
	}
	var total decimal.Decimal
	if credit {
		total, err = s.Credit(ctx, userID, amount)
	} else {
		total, err = s.Debit(ctx, userID, amount)
	}
	if err != nil {
		return decimal.Zero, err
	}
	s.logger.Info("ledger adjusted",
		zap.String("user_id", userID),
		zap.Bool("credit", credit),
		zap.String("amount", amount.String()),
		zap.String("actor_id", actor.ID))
	return total, nil
}
