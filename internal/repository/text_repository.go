package repository

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/persistence"
)

// TextEntry is one key -> text row.
type TextEntry struct {
	Key   string
	Value string
}

// TextRepository persists a table of free-text values such as payment
// instructions or sticky notices.
type TextRepository interface {
	All(ctx context.Context) ([]TextEntry, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (bool, error)
}

type textRepository struct {
	mu     sync.Mutex
	store  persistence.Store
	table  persistence.Table
	logger *zap.Logger
}

func NewTextRepository(store persistence.Store, table persistence.Table, logger *zap.Logger) TextRepository {
	return &textRepository{store: store, table: table, logger: logger}
}

func (r *textRepository) All(ctx context.Context) ([]TextEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *textRepository) Get(ctx context.Context, key string) (string, bool, error) {
	entries, err := r.All(ctx)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true, nil
		}
	}
	return "", false, nil
}

func (r *textRepository) Put(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].Key == key {
			entries[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, TextEntry{Key: key, Value: value})
	}
	return r.save(ctx, entries)
}

func (r *textRepository) Delete(ctx context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].Key == key {
			entries = append(entries[:i], entries[i+1:]...)
			return true, r.save(ctx, entries)
		}
	}
	return false, nil
}

func (r *textRepository) load(ctx context.Context) ([]TextEntry, error) {
	records, err := r.store.Load(ctx, r.table)
	if err != nil {
		return nil, err
	}
	entries := make([]TextEntry, 0, len(records))
	for _, record := range records {
		// Message ids from older releases were written as numbers.
		var value flexID
		if err := json.Unmarshal(record.Value, &value); err != nil {
			r.logger.Warn("skipping unreadable entry",
				zap.String("table", string(r.table)), zap.String("key", record.Key), zap.Error(err))
			continue
		}
		entries = append(entries, TextEntry{Key: record.Key, Value: string(value)})
	}
	return entries, nil
}

func (r *textRepository) save(ctx context.Context, entries []TextEntry) error {
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
