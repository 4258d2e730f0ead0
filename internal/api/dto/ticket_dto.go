package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketListQuery captures query filters for the ticket listing.
type TicketListQuery struct {
	OwnerID string
	Status  domain.TicketStatus
	Warned  *bool
}

// TicketSummary response.
type TicketSummary struct {
	ChannelID      string              `json:"channel_id"`
	OwnerID        string              `json:"owner_id"`
	DeliveryType   domain.DeliveryType `json:"delivery_type"`
	Subtype        domain.Kind         `json:"subtype"`
	PaymentMethod  string              `json:"payment_method"`
	Amount         int64               `json:"amount"`
	TotalCost      string              `json:"total_cost"`
	Status         domain.TicketStatus `json:"status"`
	Warned         bool                `json:"warned"`
	WarnTime       *time.Time          `json:"warn_time,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`
}

// NewTicketSummary converts a ticket record.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ChannelID:      t.ChannelID,
		OwnerID:        t.OwnerID,
		DeliveryType:   t.DeliveryType,
		Subtype:        t.Subtype,
		PaymentMethod:  t.PaymentMethod,
		Amount:         t.Amount,
		TotalCost:      t.TotalCost.StringFixed(2),
		Status:         t.Status,
		Warned:         t.Warned,
		WarnTime:       t.WarnTime,
		Notes:          t.Notes,
		CreatedAt:      t.CreatedAt,
		LastActivityAt: t.LastActivityAt,
	}
}
