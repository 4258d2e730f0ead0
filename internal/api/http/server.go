package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/observability"
)

// NewApp builds the ops API with middlewares and routes attached.
func NewApp(app config.AppConfig, logger *zap.Logger, metrics *observability.Metrics, routes RouteConfig) *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               app.Name,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	RegisterMiddlewares(server, logger, metrics, app.RequestTimeout())
	RegisterRoutes(server, routes)
	return server
}
