package domain

import "github.com/shopspring/decimal"

// LedgerEntry holds a user's lifetime spend. Spent never goes below zero.
type LedgerEntry struct {
	UserID string
	Spent  decimal.Decimal
}

// Tier maps a lifetime-spend threshold to a role.
type Tier struct {
	Threshold decimal.Decimal
	RoleID    string
}

// HighestTier returns the highest tier whose threshold spent meets. tiers
// must be sorted by threshold, descending.
func HighestTier(tiers []Tier, spent decimal.Decimal) (Tier, bool) {
	for _, tier := range tiers {
		if spent.GreaterThanOrEqual(tier.Threshold) {
			return tier, true
		}
	}
	return Tier{}, false
}
