package dto

// SetPriceRequest payload.
type SetPriceRequest struct {
	Price string `json:"price" validate:"required,numeric"`
}

// PriceEntry response.
type PriceEntry struct {
	Subtype      string `json:"subtype"`
	PricePer1000 string `json:"price_per_1000"`
}

// PaymentMethodEntry response.
type PaymentMethodEntry struct {
	Method       string `json:"method"`
	FeePercent   string `json:"fee_percent"`
	Instructions string `json:"instructions,omitempty"`
}
