package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Pricing        *handlers.PricingHandler
	Ledger         *handlers.LedgerHandler
	Transcripts    *handlers.TranscriptsHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Get("/tickets/:channelID", cfg.Tickets.GetTicket)

	api.Get("/prices", cfg.Pricing.ListPrices)
	api.Put("/prices/:subtype", cfg.Pricing.SetPrice)
	api.Get("/payments", cfg.Pricing.ListPaymentMethods)

	api.Get("/leaderboard", cfg.Ledger.Leaderboard)
	api.Get("/ledger/:userID", cfg.Ledger.GetBalance)
	api.Post("/ledger/:userID/adjust", cfg.Ledger.Adjust)

	api.Get("/transcripts", cfg.Transcripts.List)
	api.Get("/transcripts/:name", cfg.Transcripts.Get)
}
