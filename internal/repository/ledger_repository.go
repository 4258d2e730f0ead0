package repository

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/persistence"
)

const ledgerUsersKey = "users"

// LedgerRepository persists lifetime spend per user, in discovery order.
type LedgerRepository interface {
	Load(ctx context.Context) ([]domain.LedgerEntry, error)
	Save(ctx context.Context, entries []domain.LedgerEntry) error
}

type ledgerRepository struct {
	store  persistence.Store
	logger *zap.Logger
}

func NewLedgerRepository(store persistence.Store, logger *zap.Logger) LedgerRepository {
	return &ledgerRepository{store: store, logger: logger}
}

type ledgerRecord struct {
	Spent decimal.Decimal `json:"spent"`
}

// Load reads {"users": {uid: {"spent": x}}}. A flat {uid: {...}} document
// is accepted too.
func (r *ledgerRepository) Load(ctx context.Context) ([]domain.LedgerEntry, error) {
	records, err := r.store.Load(ctx, persistence.TableAccounting)
	if err != nil {
		return nil, err
	}
	if len(records) == 1 && records[0].Key == ledgerUsersKey {
		nested, err := persistence.DecodeDocument(records[0].Value)
		if err != nil {
			r.logger.Warn("discarding malformed ledger users", zap.Error(err))
			return nil, nil
		}
		records = nested
	}

	entries := make([]domain.LedgerEntry, 0, len(records))
	for _, record := range records {
		var rec ledgerRecord
		if err := json.Unmarshal(record.Value, &rec); err != nil {
			r.logger.Warn("skipping unreadable ledger entry", zap.String("user_id", record.Key), zap.Error(err))
			continue
		}
		if rec.Spent.IsNegative() {
			rec.Spent = decimal.Zero
		}
		entries = append(entries, domain.LedgerEntry{UserID: record.Key, Spent: rec.Spent})
	}
	return entries, nil
}

func (r *ledgerRepository) Save(ctx context.Context, entries []domain.LedgerEntry) error {
	users := make([]persistence.Record, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(ledgerRecord{Spent: e.Spent})
		if err != nil {
			return err
		}
		users = append(users, persistence.Record{Key: e.UserID, Value: raw})
	}
	doc, err := persistence.EncodeDocument(users)
	if err != nil {
		return err
	}
	return r.store.Save(ctx, persistence.TableAccounting, []persistence.Record{{Key: ledgerUsersKey, Value: doc}})
}
