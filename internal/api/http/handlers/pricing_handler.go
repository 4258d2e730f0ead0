package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// PricingHandler manages unit prices and payment methods.
type PricingHandler struct {
	service *service.PricingService
}

// NewPricingHandler constructs handler.
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{service: pricingService}
}

// ListPrices GET /prices.
func (h *PricingHandler) ListPrices(c *fiber.Ctx) error {
	actor, err := operator(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ViewPrices(actor)
	if err != nil {
		return err
	}
	items := make([]dto.PriceEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.PriceEntry{Subtype: e.Key, PricePer1000: e.Value.StringFixed(2)})
	}
	return c.JSON(fiber.Map{"data": items})
}

// SetPrice PUT /prices/:subtype.
func (h *PricingHandler) SetPrice(c *fiber.Ctx) error {
	actor, err := operator(c)
	if err != nil {
		return err
	}
	var req dto.SetPriceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtype := c.Params("subtype")
	if err := h.service.SetPrice(c.UserContext(), actor, subtype, req.Price); err != nil {
		return err
	}
	return h.ListPrices(c)
}

// ListPaymentMethods GET /payments.
func (h *PricingHandler) ListPaymentMethods(c *fiber.Ctx) error {
	actor, err := operator(c)
	if err != nil {
		return err
	}
	views, err := h.service.ViewPayments(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.PaymentMethodEntry, 0, len(views))
	for _, v := range views {
		items = append(items, dto.PaymentMethodEntry{
			Method:       v.Method,
			FeePercent:   v.FeePercent.String(),
			Instructions: v.Instructions,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
