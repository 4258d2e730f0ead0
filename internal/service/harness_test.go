package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

const (
	testGuildID     = "guild-1"
	testLogChannel  = "log-1"
	testCompleted   = "cat-completed"
	testSupportRole = "support"
	testAdminRole   = "admin"
)

var (
	testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	staff     = domain.Actor{ID: "staff-1", Name: "Staffer", RoleIDs: []string{testSupportRole}}
	admin     = domain.Actor{ID: "admin-1", Name: "Boss", RoleIDs: []string{testAdminRole}}
	customer  = domain.Actor{ID: "100000001234", Name: "Some Buyer"}
	outsider  = domain.Actor{ID: "999", Name: "Nobody"}
)

// flakyStore wraps a MemoryStore and fails saves on demand.
type flakyStore struct {
	*persistence.MemoryStore
	failSave bool
}

func (s *flakyStore) Save(ctx context.Context, table persistence.Table, records []persistence.Record) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, table, records)
}

type recordingDispatcher struct {
	events.Dispatcher
	published []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, e events.Event) error {
	d.published = append(d.published, e)
	return d.Dispatcher.Publish(ctx, e)
}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range d.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	t          *testing.T
	store      *flakyStore
	platform   *platformtest.Fake
	clock      *clock.FakeClock
	guild      *config.GuildConfig
	authz      *auth.Authorizer
	registry   *TicketRegistry
	pricing    *PricingService
	ledger     *LedgerService
	dispatcher *recordingDispatcher
	tickets    *TicketService
	policy     config.PolicyConfig
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		TicketQuota:             3,
		CategoryCapacity:        50,
		InactivityWarnAfter:     72 * time.Hour,
		InactivityGrace:         24 * time.Hour,
		InactivitySweepInterval: time.Hour,
		TierSweepInterval:       5 * time.Minute,
		ConfirmTimeout:          time.Minute,
		StickyDelay:             3 * time.Second,
		LeaderboardSize:         10,
	}
}

func testGuild() *config.GuildConfig {
	return &config.GuildConfig{
		AdminRoleIDs:        []string{testAdminRole},
		SupportRoleID:       testSupportRole,
		LogChannelID:        testLogChannel,
		CompletedCategoryID: testCompleted,
		Categories: map[string][]string{
			string(domain.CategoryGamepass):      {"cat-gp-1", "cat-gp-2"},
			string(domain.CategoryGroupFunds):    {"cat-gf"},
			string(domain.CategoryInGame):        {"cat-ig"},
			string(domain.CategoryOther):         {"cat-other"},
			string(domain.CategoryNeedsGamepass): {"cat-needs-gp"},
			string(domain.CategoryNeedsInGame):   {"cat-needs-ig"},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, &flakyStore{MemoryStore: persistence.NewMemoryStore(nil)})
}

func newHarnessWithStore(t *testing.T, store *flakyStore) *harness {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	h := &harness{
		t:        t,
		store:    store,
		platform: platformtest.New(),
		clock:    clock.Fake(testStart),
		guild:    testGuild(),
		policy:   testPolicy(),
	}
	h.authz = auth.NewAuthorizer(h.guild)
	h.dispatcher = &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher(logger)}
	for _, id := range []string{"cat-gp-1", "cat-gp-2", "cat-gf", "cat-ig", "cat-other", "cat-needs-gp", "cat-needs-ig", testCompleted} {
		h.platform.AddCategory(id, 0)
	}
	h.platform.AddChannel(testLogChannel, "")

	var err error
	h.registry, err = NewTicketRegistry(ctx, repository.NewTicketRepository(store, logger), logger)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h.pricing, err = NewPricingService(ctx, PricingDependencies{
		PriceRepo:       repository.NewRateRepository(store, persistence.TablePrices, logger),
		FeeRepo:         repository.NewRateRepository(store, persistence.TableFees, logger),
		PaymentInfoRepo: repository.NewTextRepository(store, persistence.TablePaymentInfo, logger),
		Authorizer:      h.authz,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	h.ledger, err = NewLedgerService(ctx, LedgerDependencies{
		Repo:       repository.NewLedgerRepository(store, logger),
		Authorizer: h.authz,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	h.tickets = NewTicketService(TicketDependencies{
		Registry:   h.registry,
		Platform:   h.platform,
		Authorizer: h.authz,
		Pricing:    h.pricing,
		Ledger:     h.ledger,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Guild:      h.guild,
		GuildID:    testGuildID,
		Policy:     h.policy,
		Logger:     logger,
		BotUserID:  "bot",
	})
	return h
}

func (h *harness) createGamepass(owner domain.Actor, amount string) domain.Ticket {
	h.t.Helper()
	ticket, err := h.tickets.CreateTicket(context.Background(), CreateTicketInput{
		GuildID:       testGuildID,
		Owner:         owner,
		Kind:          domain.KindGamepass,
		PaymentMethod: "paypal",
		Amount:        amount,
	})
	if err != nil {
		h.t.Fatalf("create ticket: %v", err)
	}
	return ticket
}
