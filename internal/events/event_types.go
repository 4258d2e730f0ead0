package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketConfirmed EventType = "ticket_confirmed"
	EventTicketWarned    EventType = "ticket_warned"
	EventTicketClosed    EventType = "ticket_closed"
	EventLedgerAdjusted  EventType = "ledger_adjusted"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string `json:"user_id"`
	System bool   `json:"system"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.ID, System: a.System}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ChannelID string      `json:"channel_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID       string              `json:"owner_id"`
	DeliveryType  domain.DeliveryType `json:"delivery_type"`
	Subtype       domain.Kind         `json:"subtype"`
	PaymentMethod string              `json:"payment_method"`
	Amount        int64               `json:"amount"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	Uncategorized bool                `json:"uncategorized"`
}

// TicketConfirmedPayload payload.
type TicketConfirmedPayload struct {
	Subtype    domain.Kind `json:"subtype"`
	CategoryID string      `json:"category_id"`
}

// TicketWarnedPayload payload.
type TicketWarnedPayload struct {
	OwnerID string        `json:"owner_id"`
	Idle    time.Duration `json:"idle"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OwnerID    string          `json:"owner_id"`
	Mode       string          `json:"mode"`
	Reason     string          `json:"reason"`
	Credited   decimal.Decimal `json:"credited"`
	Transcript string          `json:"transcript,omitempty"`
	Orphaned   bool            `json:"orphaned"`
}

// LedgerAdjustedPayload payload.
type LedgerAdjustedPayload struct {
	UserID string          `json:"user_id"`
	Delta  decimal.Decimal `json:"delta"`
	Total  decimal.Decimal `json:"total"`
}
