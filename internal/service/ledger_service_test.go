package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedgerDebitFloorsAtZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.Credit(ctx, "u", dec("100")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	total, err := h.ledger.Debit(ctx, "u", dec("150"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !total.IsZero() || !h.ledger.Total("u").IsZero() {
		t.Fatalf("expected 0, got %s", total)
	}
	if !h.ledger.Total("unknown").IsZero() {
		t.Fatalf("unknown users have zero spend")
	}
	if _, err := h.ledger.Credit(ctx, "u", dec("-1")); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("negative credit should be rejected, got %v", err)
	}
}

func TestLedgerTopKKeepsDiscoveryOrderForTies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, e := range []struct{ user, amount string }{{"A", "50"}, {"B", "200"}, {"C", "200"}, {"D", "10"}} {
		if _, err := h.ledger.Credit(ctx, e.user, dec(e.amount)); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	top := h.ledger.TopK(3)
	if len(top) != 3 || top[0].UserID != "B" || top[1].UserID != "C" || top[2].UserID != "A" {
		t.Fatalf("unexpected order %+v", top)
	}
	if h.ledger.TopK(0) != nil {
		t.Fatalf("k=0 returns nothing")
	}
}

func TestLedgerPersistsAndReloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.Credit(ctx, "u1", dec("12.5")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	again := newHarnessWithStore(t, h.store)
	if !again.ledger.Total("u1").Equal(dec("12.5")) {
		t.Fatalf("ledger not persisted, got %s", again.ledger.Total("u1"))
	}
	if got := h.dispatcher.ofType(events.EventLedgerAdjusted); len(got) != 1 {
		t.Fatalf("expected one adjustment event, got %d", len(got))
	}
}

func TestLedgerFailedSaveRollsBack(t *testing.T) {
	h := newHarness(t)
	h.store.failSave = true
	if _, err := h.ledger.Credit(context.Background(), "u1", dec("5")); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(h.ledger.Entries()) != 0 {
		t.Fatalf("failed credit must not leave an entry")
	}
}

func TestLedgerAdjustRequiresStaff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.ledger.Adjust(ctx, customer, "u1", "10", true); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.ledger.Adjust(ctx, staff, "u1", "-10", true); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	total, err := h.ledger.Adjust(ctx, staff, "u1", "10.50", true)
	if err != nil || !total.Equal(dec("10.5")) {
		t.Fatalf("addbal: total=%s err=%v", total, err)
	}
	total, err = h.ledger.Adjust(ctx, admin, "u1", "3", false)
	if err != nil || !total.Equal(dec("7.5")) {
		t.Fatalf("subbal: total=%s err=%v", total, err)
	}
	if got, err := h.ledger.Info(staff, "u1"); err != nil || !got.Equal(dec("7.5")) {
		t.Fatalf("info: %s %v", got, err)
	}
	if _, err := h.ledger.Info(customer, "u1"); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("info must be staff only, got %v", err)
	}
}

type failingDispatcher struct{ events.Dispatcher }

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return errors.New("broker down")
}

func TestLedgerLogsPublishFailure(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	ledger, err := NewLedgerService(ctx, LedgerDependencies{
		Repo:       repository.NewLedgerRepository(persistence.NewMemoryStore(nil), zap.NewNop()),
		Dispatcher: failingDispatcher{},
		Clock:      newHarness(t).clock,
		Logger:     zap.New(core),
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	total, err := ledger.Credit(ctx, "u1", dec("3"))
	if err != nil || !total.Equal(dec("3")) {
		t.Fatalf("credit should succeed despite publish failure, got %s %v", total, err)
	}
	entries := logs.FilterMessage("event publish failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one publish warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["event_type"]; got != string(events.EventLedgerAdjusted) {
		t.Fatalf("unexpected event_type %v", got)
	}
}
