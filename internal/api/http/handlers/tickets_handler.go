package handlers

import (
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketsHandler exposes the open ticket registry to operators.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	if _, err := operator(c); err != nil {
		return err
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets := h.service.Tickets()
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].CreatedAt.Before(tickets[j].CreatedAt) })

	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		if !matchesTicketQuery(t, query) {
			continue
		}
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}

// GetTicket GET /tickets/:channelID.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, err := operator(c); err != nil {
		return err
	}
	ticket, ok := h.service.Ticket(c.Params("channelID"))
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"channel_id": c.Params("channelID")})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{
		OwnerID: c.Query("owner_id"),
		Status:  domain.TicketStatus(c.Query("status")),
	}
	if raw := c.Query("warned"); raw != "" {
		warned, err := strconv.ParseBool(raw)
		if err != nil {
			return query, apperrors.NewValidationError("warned must be a boolean", nil)
		}
		query.Warned = &warned
	}
	return query, nil
}

func matchesTicketQuery(t domain.Ticket, q dto.TicketListQuery) bool {
	if q.OwnerID != "" && t.OwnerID != q.OwnerID {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Warned != nil && t.Warned != *q.Warned {
		return false
	}
	return true
}
