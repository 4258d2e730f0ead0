package dto

// AdjustBalanceRequest payload. Direction is credit or debit.
type AdjustBalanceRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	Direction string `json:"direction" validate:"required,oneof=credit debit"`
}

// LedgerEntry response.
type LedgerEntry struct {
	Rank   int    `json:"rank,omitempty"`
	UserID string `json:"user_id"`
	Total  string `json:"total"`
}
