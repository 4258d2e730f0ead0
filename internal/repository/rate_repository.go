package repository

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/pricing"
)

// RateRepository persists a price or fee table.
type RateRepository interface {
	Load(ctx context.Context) (*pricing.Table, error)
	Save(ctx context.Context, table *pricing.Table) error
}

type rateRepository struct {
	store  persistence.Store
	table  persistence.Table
	logger *zap.Logger
}

// NewRateRepository binds a repository to one table, e.g. prices or payment_fees.
func NewRateRepository(store persistence.Store, table persistence.Table, logger *zap.Logger) RateRepository {
	return &rateRepository{store: store, table: table, logger: logger}
}

func (r *rateRepository) Load(ctx context.Context) (*pricing.Table, error) {
	records, err := r.store.Load(ctx, r.table)
	if err != nil {
		return nil, err
	}
	table := pricing.NewTable()
	for _, record := range records {
		var value decimal.Decimal
		if err := json.Unmarshal(record.Value, &value); err != nil {
			r.logger.Warn("skipping unreadable rate",
				zap.String("table", string(r.table)), zap.String("key", record.Key), zap.Error(err))
			continue
		}
		table.Set(record.Key, value)
	}
	return table, nil
}

func (r *rateRepository) Save(ctx context.Context, table *pricing.Table) error {
	entries := table.Entries()
	records := make([]persistence.Record, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e.Value)
		if err != nil {
			return err
		}
		records = append(records, persistence.Record{Key: e.Key, Value: raw})
	}
	return r.store.Save(ctx, r.table, records)
}
