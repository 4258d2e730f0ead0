package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Load(ctx context.Context) ([]domain.Ticket, error)
	Save(ctx context.Context, tickets []domain.Ticket) error
}

type ticketRepository struct {
	store  persistence.Store
	logger *zap.Logger
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(store persistence.Store, logger *zap.Logger) TicketRepository {
	return &ticketRepository{store: store, logger: logger}
}

type ticketRecord struct {
	ChannelID     flexID          `json:"channel_id"`
	UserID        flexID          `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
	LastActivity  time.Time       `json:"last_activity"`
	DeliveryType  string          `json:"delivery_type"`
	Subtype       *string         `json:"subtype"`
	PaymentMethod string          `json:"payment_method"`
	Amount        int64           `json:"amount"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Status        string          `json:"status,omitempty"`
	Warned        bool            `json:"warned"`
	WarnTime      *time.Time      `json:"warn_time"`
	Notes         string          `json:"notes,omitempty"`
}

// Load returns every persisted ticket. Documents in the older
// user -> [tickets] shape are flattened; undecodable entries are skipped.
func (r *ticketRepository) Load(ctx context.Context) ([]domain.Ticket, error) {
	records, err := r.store.Load(ctx, persistence.TableTickets)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var tickets []domain.Ticket
	add := func(rec ticketRecord, fallbackChannel string) {
		t := rec.toDomain()
		if t.ChannelID == "" {
			t.ChannelID = fallbackChannel
		}
		if t.ChannelID == "" || t.OwnerID == "" {
			return
		}
		if _, dup := seen[t.ChannelID]; dup {
			return
		}
		seen[t.ChannelID] = struct{}{}
		tickets = append(tickets, t)
	}

	for _, record := range records {
		if isJSONArray(record.Value) {
			var list []ticketRecord
			if err := json.Unmarshal(record.Value, &list); err != nil {
				r.logger.Warn("skipping unreadable ticket list", zap.String("user_id", record.Key), zap.Error(err))
				continue
			}
			for _, rec := range list {
				if rec.UserID == "" {
					rec.UserID = flexID(record.Key)
				}
				add(rec, "")
			}
			continue
		}

		var rec ticketRecord
		if err := json.Unmarshal(record.Value, &rec); err != nil {
			r.logger.Warn("skipping unreadable ticket", zap.String("channel_id", record.Key), zap.Error(err))
			continue
		}
		add(rec, record.Key)
	}
	return tickets, nil
}

func (r *ticketRepository) Save(ctx context.Context, tickets []domain.Ticket) error {
	records := make([]persistence.Record, 0, len(tickets))
	for _, t := range tickets {
		raw, err := json.Marshal(fromDomainTicket(t))
		if err != nil {
			return err
		}
		records = append(records, persistence.Record{Key: t.ChannelID, Value: raw})
	}
	return r.store.Save(ctx, persistence.TableTickets, records)
}

func (rec ticketRecord) toDomain() domain.Ticket {
	t := domain.Ticket{
		ChannelID:      string(rec.ChannelID),
		OwnerID:        string(rec.UserID),
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivity,
		DeliveryType:   domain.DeliveryType(rec.DeliveryType),
		Subtype:        domain.KindOther,
		PaymentMethod:  rec.PaymentMethod,
		Amount:         rec.Amount,
		TotalCost:      rec.TotalCost,
		Status:         domain.TicketStatus(rec.Status),
		Warned:         rec.Warned,
		WarnTime:       rec.WarnTime,
		Notes:          rec.Notes,
	}
	if rec.Subtype != nil && *rec.Subtype != "" {
		t.Subtype = domain.Kind(*rec.Subtype)
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusOpen
	}
	if t.LastActivityAt.IsZero() {
		t.LastActivityAt = t.CreatedAt
	}
	return t
}

func fromDomainTicket(t domain.Ticket) ticketRecord {
	rec := ticketRecord{
		ChannelID:     flexID(t.ChannelID),
		UserID:        flexID(t.OwnerID),
		CreatedAt:     t.CreatedAt,
		LastActivity:  t.LastActivityAt,
		DeliveryType:  string(t.DeliveryType),
		PaymentMethod: t.PaymentMethod,
		Amount:        t.Amount,
		TotalCost:     t.TotalCost,
		Status:        string(t.Status),
		Warned:        t.Warned,
		WarnTime:      t.WarnTime,
		Notes:         t.Notes,
	}
	if t.Subtype != "" && t.Subtype != domain.KindOther {
		subtype := string(t.Subtype)
		rec.Subtype = &subtype
	}
	return rec
}
