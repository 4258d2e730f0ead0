package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for tickets. A closed ticket has
// no record; CLOSED only appears on events.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "OPEN"
	TicketStatusConfirmed TicketStatus = "CONFIRMED"
	TicketStatusClosed    TicketStatus = "CLOSED"
)

// Ticket is one open support conversation bound to one private channel.
type Ticket struct {
	ChannelID      string
	OwnerID        string
	CreatedAt      time.Time
	LastActivityAt time.Time
	DeliveryType   DeliveryType
	Subtype        Kind
	PaymentMethod  string
	Amount         int64
	TotalCost      decimal.Decimal
	Status         TicketStatus
	Warned         bool
	WarnTime       *time.Time
	Notes          string
}

// IdleFor returns how long the ticket has gone without a message.
func (t Ticket) IdleFor(now time.Time) time.Duration {
	return now.Sub(t.LastActivityAt)
}

// WarnedFor returns the age of the inactivity warning, or false when the
// ticket carries no usable warning.
func (t Ticket) WarnedFor(now time.Time) (time.Duration, bool) {
	if !t.Warned || t.WarnTime == nil {
		return 0, false
	}
	return now.Sub(*t.WarnTime), true
}
