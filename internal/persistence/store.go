package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Table names one persisted key-value document.
type Table string

const (
	TableTickets          Table = "tickets"
	TablePrices           Table = "prices"
	TableFees             Table = "payment_fees"
	TablePaymentInfo      Table = "payment_info"
	TableAccounting       Table = "accounting"
	TablePendingCloses    Table = "pending_closes"
	TableStickyMessages   Table = "stickymessages"
	TableStickyMessageIDs Table = "sticky_message_ids"
)

// ErrMalformed marks a stored document that is not a JSON object.
var ErrMalformed = errors.New("malformed document")

// Record is one top-level entry of a table document.
type Record struct {
	Key   string
	Value json.RawMessage
}

// Store persists whole tables. Load never fails on a missing or malformed
// document; both read as an empty table. Key order survives a round trip.
type Store interface {
	Load(ctx context.Context, table Table) ([]Record, error)
	Save(ctx context.Context, table Table, records []Record) error
	Ping(ctx context.Context) error
}

// DecodeDocument parses a JSON object into records, preserving key order.
// A repeated key keeps its first position and its last value.
func DecodeDocument(raw []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}

	var records []Record
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key", ErrMalformed)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: value for %q: %v", ErrMalformed, key, err)
		}
		if i, seen := index[key]; seen {
			records[i].Value = value
			continue
		}
		index[key] = len(records)
		records = append(records, Record{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return records, nil
}

// EncodeDocument renders records as an indented JSON object in order.
func EncodeDocument(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(r.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(r.Value)
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out.Bytes(), nil
}

// decodeOrEmpty treats a malformed document as an empty table.
func decodeOrEmpty(raw []byte, table Table, logger *zap.Logger) []Record {
	records, err := DecodeDocument(raw)
	if err != nil {
		logger.Warn("discarding malformed document", zap.String("table", string(table)), zap.Error(err))
		return nil
	}
	return records
}
