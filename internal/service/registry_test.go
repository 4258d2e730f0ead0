package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func newTestRegistry(t *testing.T, store persistence.Store) *TicketRegistry {
	t.Helper()
	r, err := NewTicketRegistry(context.Background(), repository.NewTicketRepository(store, zap.NewNop()), zap.NewNop())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func openTicket(channelID, ownerID string) domain.Ticket {
	return domain.Ticket{
		ChannelID:      channelID,
		OwnerID:        ownerID,
		CreatedAt:      testStart,
		LastActivityAt: testStart,
		Subtype:        domain.KindOther,
		Status:         domain.TicketStatusOpen,
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	store := persistence.NewMemoryStore(nil)
	r := newTestRegistry(t, store)
	ctx := context.Background()
	for _, id := range []string{"c1", "c2"} {
		if err := r.Insert(ctx, openTicket(id, "u1")); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := r.Insert(ctx, openTicket("c1", "u2")); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict on tracked channel, got %v", err)
	}

	reloaded := newTestRegistry(t, store)
	if got := reloaded.LiveCount("u1"); got != 2 {
		t.Fatalf("expected 2 tickets after reload, got %d", got)
	}
}

func TestRegistryPruneIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, persistence.NewMemoryStore(nil))
	fake := platformtest.New()
	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		fake.AddChannel(id, "")
		if err := r.Insert(ctx, openTicket(id, "u1")); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	fake.RemoveChannel("c2")

	first, err := r.Prune(ctx, "u1", fake)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	firstSet := r.OwnedBy("u1")
	second, err := r.Prune(ctx, "u1", fake)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected 2 live both times, got %d and %d", first, second)
	}
	secondSet := r.OwnedBy("u1")
	if len(firstSet) != len(secondSet) || firstSet[0].ChannelID != "c1" || secondSet[1].ChannelID != "c3" {
		t.Fatalf("surviving set changed: %+v vs %+v", firstSet, secondSet)
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, persistence.NewMemoryStore(nil))
	ctx := context.Background()
	if err := r.Insert(ctx, openTicket("c1", "u1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, removed, err := r.Remove(ctx, "c1"); err != nil || !removed {
		t.Fatalf("first remove: removed=%v err=%v", removed, err)
	}
	if _, removed, err := r.Remove(ctx, "c1"); err != nil || removed {
		t.Fatalf("second remove should be a no-op: removed=%v err=%v", removed, err)
	}
}

func TestRegistryTouchOnlyOwnerClearsWarning(t *testing.T) {
	r := newTestRegistry(t, persistence.NewMemoryStore(nil))
	ctx := context.Background()
	if err := r.Insert(ctx, openTicket("c1", "owner")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	warnAt := testStart.Add(time.Hour)
	if _, err := r.MarkWarned(ctx, "c1", warnAt); err != nil {
		t.Fatalf("mark: %v", err)
	}

	later := testStart.Add(2 * time.Hour)
	if _, err := r.Touch(ctx, "c1", "someone-else", later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := r.FindByChannel("c1")
	if !got.Warned || got.WarnTime == nil || !got.WarnTime.Equal(warnAt) {
		t.Fatalf("non-owner touch changed the warning: %+v", got)
	}
	if !got.LastActivityAt.Equal(later) {
		t.Fatalf("activity not recorded")
	}

	if _, err := r.Touch(ctx, "c1", "owner", later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ = r.FindByChannel("c1")
	if got.Warned || got.WarnTime != nil {
		t.Fatalf("owner touch must clear the warning: %+v", got)
	}

	if tracked, err := r.Touch(ctx, "general", "owner", later); err != nil || tracked {
		t.Fatalf("touch on untracked channel: tracked=%v err=%v", tracked, err)
	}
}

func TestRegistryRollsBackFailedWrites(t *testing.T) {
	store := &flakyStore{MemoryStore: persistence.NewMemoryStore(nil)}
	r := newTestRegistry(t, store)
	ctx := context.Background()
	if err := r.Insert(ctx, openTicket("c1", "u1")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	store.failSave = true
	if err := r.Insert(ctx, openTicket("c2", "u1")); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, ok := r.FindByChannel("c2"); ok {
		t.Fatalf("failed insert must roll back")
	}
	if _, _, err := r.Remove(ctx, "c1"); err == nil {
		t.Fatalf("expected remove failure")
	}
	if _, ok := r.FindByChannel("c1"); !ok {
		t.Fatalf("failed remove must keep the ticket")
	}
	if _, err := r.MarkWarned(ctx, "c1", testStart); err == nil {
		t.Fatalf("expected mark failure")
	}
	if got, _ := r.FindByChannel("c1"); got.Warned {
		t.Fatalf("failed update must roll back")
	}
}

func TestRegistryImportsPendingCloses(t *testing.T) {
	r := newTestRegistry(t, persistence.NewMemoryStore(nil))
	ctx := context.Background()
	if err := r.Insert(ctx, openTicket("c1", "u1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	warnAt := testStart.Add(-10 * time.Hour)
	n, err := r.ImportPendingCloses(ctx, []repository.PendingClose{
		{ChannelID: "c1", WarnedAt: warnAt},
		{ChannelID: "gone", WarnedAt: warnAt},
	})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 import, got %d err=%v", n, err)
	}
	got, _ := r.FindByChannel("c1")
	if age, ok := got.WarnedFor(testStart); !ok || age != 10*time.Hour {
		t.Fatalf("unexpected warning state %+v", got)
	}
}
