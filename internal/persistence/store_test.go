package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDecodeDocumentPreservesOrder(t *testing.T) {
	records, err := DecodeDocument([]byte(`{"zeta": 1, "alpha": {"x": [1,2]}, "mid": "s", "zeta": 3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	keys := []string{"zeta", "alpha", "mid"}
	if len(records) != len(keys) {
		t.Fatalf("expected %d records, got %d", len(keys), len(records))
	}
	for i, k := range keys {
		if records[i].Key != k {
			t.Fatalf("record %d: expected %q, got %q", i, k, records[i].Key)
		}
	}
	if string(records[0].Value) != "3" {
		t.Fatalf("duplicate key should keep last value, got %s", records[0].Value)
	}
}

func TestDecodeDocumentRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{``, `[]`, `null`, `{"a":`, `{"a":1} {"b":2}`} {
		if _, err := DecodeDocument([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []Record{
		{Key: "b", Value: []byte(`{"spent":"10.45"}`)},
		{Key: "a", Value: nil},
	}
	doc, err := EncodeDocument(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeDocument(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0].Key != "b" || out[1].Key != "a" || string(out[1].Value) != "null" {
		t.Fatalf("unexpected round trip: %+v", out)
	}
}

func TestFileStoreMissingAndMalformedReadEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	records, err := store.Load(ctx, TableTickets)
	if err != nil || len(records) != 0 {
		t.Fatalf("missing table: got %v, %v", records, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "accounting.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err = store.Load(ctx, TableAccounting)
	if err != nil || len(records) != 0 {
		t.Fatalf("malformed table: got %v, %v", records, err)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	want := []Record{{Key: "paypal", Value: []byte(`"send to x"`)}, {Key: "bank", Value: []byte(`"iban"`)}}
	if err := store.Save(ctx, TablePaymentInfo, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, TablePaymentInfo)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Key != "paypal" || string(got[1].Value) != `"iban"` {
		t.Fatalf("unexpected records %+v", got)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMemoryStoreMalformed(t *testing.T) {
	store := NewMemoryStore(nil)
	store.Put(TableTickets, "garbage")
	records, err := store.Load(context.Background(), TableTickets)
	if err != nil || records != nil {
		t.Fatalf("expected empty table, got %v, %v", records, err)
	}
}

func TestTranscriptArchive(t *testing.T) {
	archive, err := NewTranscriptArchive(t.TempDir())
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	content := strings.Repeat("[2024-01-01T00:00:00Z] user (1): hi\n", 50)
	name, err := archive.Write("42", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), content)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(name, "42_20240102_030405_") {
		t.Fatalf("unexpected name %q", name)
	}

	got, err := archive.Read(name)
	if err != nil || got != content {
		t.Fatalf("read back mismatch: %v", err)
	}
	if _, err := archive.Read("../etc/passwd"); !errors.Is(err, ErrTranscriptNotFound) {
		t.Fatalf("expected not found for traversal, got %v", err)
	}
	names, err := archive.List()
	if err != nil || len(names) != 1 || names[0] != name {
		t.Fatalf("unexpected list %v, %v", names, err)
	}
}
