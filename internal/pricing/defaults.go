package pricing

import "github.com/shopspring/decimal"

// DefaultPrices returns the built-in per-1000 unit prices by subtype.
func DefaultPrices() *Table {
	return NewTable(
		Entry{Key: "gamepass", Value: decimal.RequireFromString("4.75")},
		Entry{Key: "groupfunds", Value: decimal.RequireFromString("6.25")},
		Entry{Key: "ingame", Value: decimal.RequireFromString("4.8")},
	)
}

// DefaultFees returns the built-in fee percentages by payment method.
func DefaultFees() *Table {
	return NewTable(
		Entry{Key: "binance", Value: decimal.Zero},
		Entry{Key: "crypto", Value: decimal.Zero},
		Entry{Key: "wise", Value: decimal.Zero},
		Entry{Key: "bank", Value: decimal.Zero},
		Entry{Key: "paypal", Value: decimal.NewFromInt(10)},
		Entry{Key: "tng", Value: decimal.NewFromInt(7)},
		Entry{Key: "zelle", Value: decimal.NewFromInt(7)},
		Entry{Key: "chime", Value: decimal.NewFromInt(7)},
		Entry{Key: "skrill", Value: decimal.NewFromInt(7)},
		Entry{Key: "giftcard", Value: decimal.NewFromInt(7)},
	)
}
