package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const testPassword = "correct horse"

type apiFixture struct {
	app     *fiber.App
	tickets *service.TicketService
	ledger  *service.LedgerService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	store := persistence.NewMemoryStore(nil)
	guild := &config.GuildConfig{
		AdminRoleIDs:  []string{"admin"},
		SupportRoleID: "support",
		Categories:    map[string][]string{string(domain.CategoryGamepass): {"cat-gp"}},
	}
	fake := platformtest.New()
	fake.AddCategory("cat-gp", 0)
	clk := clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	authz := auth.NewAuthorizer(guild)
	dispatcher := events.NewInMemoryDispatcher(logger)

	registry, err := service.NewTicketRegistry(ctx, repository.NewTicketRepository(store, logger), logger)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	pricingSvc, err := service.NewPricingService(ctx, service.PricingDependencies{
		PriceRepo:       repository.NewRateRepository(store, persistence.TablePrices, logger),
		FeeRepo:         repository.NewRateRepository(store, persistence.TableFees, logger),
		PaymentInfoRepo: repository.NewTextRepository(store, persistence.TablePaymentInfo, logger),
		Authorizer:      authz,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	ledger, err := service.NewLedgerService(ctx, service.LedgerDependencies{
		Repo:       repository.NewLedgerRepository(store, logger),
		Authorizer: authz,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	tickets := service.NewTicketService(service.TicketDependencies{
		Registry:   registry,
		Platform:   fake,
		Authorizer: authz,
		Pricing:    pricingSvc,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Clock:      clk,
		Guild:      guild,
		GuildID:    "guild-1",
		Policy:     config.PolicyConfig{TicketQuota: 3, CategoryCapacity: 50, LeaderboardSize: 10},
		Logger:     logger,
		BotUserID:  "bot",
	})

	archive, err := persistence.NewTranscriptArchive(t.TempDir())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := archive.Write("chan-1", clk.Now(), "hello transcript"); err != nil {
		t.Fatalf("archive write: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	tokens := auth.NewTokenManager("secret", 5)
	metrics := observability.NewMetrics()
	app := NewApp(config.AppConfig{Name: "ticket-bot", RequestTimeoutSeconds: 5}, logger, metrics, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-bot", "test", "memory", store),
		Auth:           handlers.NewAuthHandler(auth.NewOperatorLogin(string(hash), tokens)),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Pricing:        handlers.NewPricingHandler(pricingSvc),
		Ledger:         handlers.NewLedgerHandler(ledger, 10),
		Transcripts:    handlers.NewTranscriptsHandler(archive),
		Metrics:        metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &apiFixture{app: app, tickets: tickets, ledger: ledger}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func (f *apiFixture) login(t *testing.T) string {
	t.Helper()
	status, body := f.do(t, nethttp.MethodPost, "/auth/login", "", `{"operator":"ops","password":"`+testPassword+`"}`)
	if status != nethttp.StatusOK {
		t.Fatalf("login status %d: %v", status, body)
	}
	token, _ := body["data"].(map[string]any)["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	if status, body := f.do(t, nethttp.MethodGet, "/health/live", "", ""); status != nethttp.StatusOK || body["status"] != "alive" {
		t.Fatalf("live: %d %v", status, body)
	}
	if status, body := f.do(t, nethttp.MethodGet, "/health/ready", "", ""); status != nethttp.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready: %d %v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, nethttp.MethodGet, "/health/live", "", "")
	resp, err := f.app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != nethttp.StatusOK || !strings.Contains(string(raw), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, nethttp.MethodPost, "/auth/login", "", `{"password":"nope"}`)
	if status != nethttp.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("expected unauthorized, got %d %v", status, body)
	}
	status, body = f.do(t, nethttp.MethodPost, "/auth/login", "", `{}`)
	if status != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("expected validation failure, got %d %v", status, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, nethttp.MethodGet, "/api/v1/tickets", "", "")
	if status != nethttp.StatusUnauthorized || errorCode(body) != "UNAUTHORIZED" {
		t.Fatalf("expected unauthorized, got %d %v", status, body)
	}
	status, _ = f.do(t, nethttp.MethodGet, "/api/v1/tickets", "garbage", "")
	if status != nethttp.StatusUnauthorized {
		t.Fatalf("expected unauthorized for a bad token, got %d", status)
	}
}

func TestTicketListing(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)
	ticket, err := f.tickets.CreateTicket(context.Background(), service.CreateTicketInput{
		GuildID:       "guild-1",
		Owner:         domain.Actor{ID: "100000001234", Name: "Buyer"},
		Kind:          domain.KindGamepass,
		PaymentMethod: "paypal",
		Amount:        "2000",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status, body := f.do(t, nethttp.MethodGet, "/api/v1/tickets?owner_id=100000001234", token, "")
	items, _ := body["data"].([]any)
	if status != nethttp.StatusOK || len(items) != 1 {
		t.Fatalf("unexpected listing %d %v", status, body)
	}
	if got := items[0].(map[string]any)["total_cost"]; got != "10.45" {
		t.Fatalf("unexpected total cost %v", got)
	}
	if _, body := f.do(t, nethttp.MethodGet, "/api/v1/tickets?owner_id=someone-else", token, ""); len(body["data"].([]any)) != 0 {
		t.Fatalf("owner filter ignored: %v", body)
	}
	if status, _ := f.do(t, nethttp.MethodGet, "/api/v1/tickets?warned=maybe", token, ""); status != nethttp.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", status)
	}
	if status, _ := f.do(t, nethttp.MethodGet, "/api/v1/tickets/"+ticket.ChannelID, token, ""); status != nethttp.StatusOK {
		t.Fatalf("expected ticket detail, got %d", status)
	}
	if status, body := f.do(t, nethttp.MethodGet, "/api/v1/tickets/missing", token, ""); status != nethttp.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("expected not found, got %d %v", status, body)
	}
}

func TestPriceUpdate(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	status, body := f.do(t, nethttp.MethodPut, "/api/v1/prices/gamepass", token, `{"price":"5.10"}`)
	if status != nethttp.StatusOK {
		t.Fatalf("set price: %d %v", status, body)
	}
	found := false
	for _, item := range body["data"].([]any) {
		entry := item.(map[string]any)
		if entry["subtype"] == "gamepass" && entry["price_per_1000"] == "5.10" {
			found = true
		}
	}
	if !found {
		t.Fatalf("updated price missing from %v", body)
	}

	status, body = f.do(t, nethttp.MethodPut, "/api/v1/prices/other", token, `{"price":"1"}`)
	if status != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("expected invalid subtype, got %d %v", status, body)
	}
	status, _ = f.do(t, nethttp.MethodPut, "/api/v1/prices/gamepass", token, `{"price":"cheap"}`)
	if status != nethttp.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d", status)
	}
}

func TestLedgerAdjustAndLeaderboard(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	status, body := f.do(t, nethttp.MethodPost, "/api/v1/ledger/42/adjust", token, `{"amount":"25.5","direction":"credit"}`)
	if status != nethttp.StatusOK || body["data"].(map[string]any)["total"] != "25.50" {
		t.Fatalf("credit: %d %v", status, body)
	}
	if _, err := f.ledger.Credit(context.Background(), "7", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	status, body = f.do(t, nethttp.MethodPost, "/api/v1/ledger/42/adjust", token, `{"amount":"5","direction":"sideways"}`)
	if status != nethttp.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d %v", status, body)
	}

	_, body = f.do(t, nethttp.MethodGet, "/api/v1/ledger/42", token, "")
	if body["data"].(map[string]any)["total"] != "25.50" {
		t.Fatalf("unexpected balance %v", body)
	}

	_, body = f.do(t, nethttp.MethodGet, "/api/v1/leaderboard?limit=1", token, "")
	items := body["data"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["user_id"] != "7" {
		t.Fatalf("unexpected leaderboard %v", body)
	}
	if status, _ := f.do(t, nethttp.MethodGet, "/api/v1/leaderboard?limit=0", token, ""); status != nethttp.StatusBadRequest {
		t.Fatalf("expected bad limit to fail, got %d", status)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do(t, nethttp.MethodGet, "/nope", "", "")
	if status != nethttp.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("unexpected response %d %v", status, body)
	}
}

func TestTranscriptArchiveRoutes(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	_, body := f.do(t, nethttp.MethodGet, "/api/v1/transcripts", token, "")
	names, _ := body["data"].([]any)
	if len(names) != 1 {
		t.Fatalf("expected one transcript, got %v", body)
	}
	req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/transcripts/"+names[0].(string), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != nethttp.StatusOK || string(raw) != "hello transcript" {
		t.Fatalf("unexpected transcript %d %q", resp.StatusCode, raw)
	}
	if status, _ := f.do(t, nethttp.MethodGet, "/api/v1/transcripts/..%2Fsecret.txt.gz", token, ""); status != nethttp.StatusNotFound {
		t.Fatalf("expected not found for path escape, got %d", status)
	}
}
