package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const maxLeaderboard = 100

// LedgerHandler exposes lifetime spend totals.
type LedgerHandler struct {
	service     *service.LedgerService
	defaultSize int
}

// NewLedgerHandler constructs handler. defaultSize is the leaderboard
// length when the request names none.
func NewLedgerHandler(ledgerService *service.LedgerService, defaultSize int) *LedgerHandler {
	return &LedgerHandler{service: ledgerService, defaultSize: defaultSize}
}

// Leaderboard GET /leaderboard.
func (h *LedgerHandler) Leaderboard(c *fiber.Ctx) error {
	if _, err := operator(c); err != nil {
		return err
	}
	size := h.defaultSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboard {
			return apperrors.NewValidationError("limit must be between 1 and 100", nil)
		}
		size = n
	}
	top := h.service.TopK(size)
	items := make([]dto.LedgerEntry, 0, len(top))
	for i, e := range top {
		items = append(items, dto.LedgerEntry{Rank: i + 1, UserID: e.UserID, Total: e.Spent.StringFixed(2)})
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetBalance GET /ledger/:userID.
func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	actor, err := operator(c)
	if err != nil {
		return err
	}
	userID := c.Params("userID")
	total, err := h.service.Info(actor, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LedgerEntry{UserID: userID, Total: total.StringFixed(2)}})
}

// Adjust POST /ledger/:userID/adjust.
func (h *LedgerHandler) Adjust(c *fiber.Ctx) error {
	actor, err := operator(c)
	if err != nil {
		return err
	}
	var req dto.AdjustBalanceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	userID := c.Params("userID")
	total, err := h.service.Adjust(c.UserContext(), actor, userID, req.Amount, req.Direction == "credit")
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LedgerEntry{UserID: userID, Total: total.StringFixed(2)}})
}
