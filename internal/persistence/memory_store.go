package persistence

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore keeps table documents in memory. Documents are stored
// encoded so that behavior matches the durable backends.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[Table][]byte
	logger *zap.Logger
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{docs: make(map[Table][]byte), logger: logger}
}

func (s *MemoryStore) Load(_ context.Context, table Table) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[table]
	if !ok {
		return nil, nil
	}
	return decodeOrEmpty(raw, table, s.logger), nil
}

func (s *MemoryStore) Save(_ context.Context, table Table, records []Record) error {
	doc, err := EncodeDocument(records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[table] = doc
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Put stores a raw document, bypassing encoding.
func (s *MemoryStore) Put(table Table, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[table] = []byte(raw)
}

// Raw returns the stored document for table.
func (s *MemoryStore) Raw(table Table) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.docs[table])
}
