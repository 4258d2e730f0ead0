// Package pricing computes ticket costs and holds the price and fee tables.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1000)
	hundred  = decimal.NewFromInt(100)
)

// ComputeCost returns (amount/1000) * unitPrice * (1 + feePercent/100).
// The result is exact; rounding is a display concern.
func ComputeCost(amount int64, unitPrice, feePercent decimal.Decimal) decimal.Decimal {
	base := decimal.NewFromInt(amount).Div(thousand).Mul(unitPrice)
	return base.Add(base.Mul(feePercent).Div(hundred))
}

// FormatMoney renders a dollar amount rounded to cents.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// Table is an ordered key -> value table with case-insensitive keys.
type Table struct {
	keys   []string
	values map[string]decimal.Decimal
}

// Entry is one row of a Table.
type Entry struct {
	Key   string
	Value decimal.Decimal
}

// NewTable builds a table from entries, later entries overriding earlier ones.
func NewTable(entries ...Entry) *Table {
	t := &Table{values: make(map[string]decimal.Decimal, len(entries))}
	for _, e := range entries {
		t.Set(e.Key, e.Value)
	}
	return t
}

// NormalizeKey lowercases and trims a table key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the value for key. Unknown keys yield zero.
func (t *Table) Get(key string) decimal.Decimal {
	v, _ := t.Lookup(key)
	return v
}

// Lookup returns the value for key and whether it exists.
func (t *Table) Lookup(key string) (decimal.Decimal, bool) {
	v, ok := t.values[NormalizeKey(key)]
	return v, ok
}

// Set adds or replaces key, keeping the position of an existing key.
func (t *Table) Set(key string, value decimal.Decimal) {
	key = NormalizeKey(key)
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Delete removes key and reports whether it was present.
func (t *Table) Delete(key string) bool {
	key = NormalizeKey(key)
	if _, ok := t.values[key]; !ok {
		return false
	}
	delete(t.values, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return true
}

// Entries returns the rows in insertion order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, Entry{Key: k, Value: t.values[k]})
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.keys) }

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	return NewTable(t.Entries()...)
}

// Merge overlays the rows of other onto t.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for _, e := range other.Entries() {
		t.Set(e.Key, e.Value)
	}
}
