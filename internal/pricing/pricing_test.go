package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeCost(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		price  string
		fee    string
		want   string
	}{
		{name: "paypal gamepass", amount: 2000, price: "4.75", fee: "10", want: "10.45"},
		{name: "no fee", amount: 1500, price: "6.25", fee: "0", want: "9.375"},
		{name: "zero amount", amount: 0, price: "4.8", fee: "7", want: "0"},
		{name: "unknown price", amount: 5000, price: "0", fee: "7", want: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeCost(tc.amount, decimal.RequireFromString(tc.price), decimal.RequireFromString(tc.fee))
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(decimal.RequireFromString("9.375")); got != "$9.38" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestTableUnknownKeyIsZero(t *testing.T) {
	fees := DefaultFees()
	if !fees.Get("western-union").IsZero() {
		t.Fatalf("unknown fee should be zero")
	}
	if !fees.Get(" PayPal ").Equal(decimal.NewFromInt(10)) {
		t.Fatalf("lookup should be case-insensitive")
	}
}

func TestTableKeepsOrderOnOverride(t *testing.T) {
	prices := DefaultPrices()
	prices.Merge(NewTable(Entry{Key: "GroupFunds", Value: decimal.RequireFromString("7")}))

	entries := prices.Entries()
	if entries[1].Key != "groupfunds" || !entries[1].Value.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("override moved or lost: %+v", entries)
	}
	if !prices.Delete("ingame") || prices.Delete("ingame") {
		t.Fatalf("delete should succeed once")
	}
	if prices.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", prices.Len())
	}
}
