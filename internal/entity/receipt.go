package entity

import (
	"time"

	"github.com/google/uuid"
)

// Extraction paths recorded on every receipt.
const (
	PathAI            = "ai"
	PathDeterministic = "deterministic"
)

// Item is a single purchased line on a receipt. Item order follows
// document order and is preserved through persistence.
type Item struct {
	ItemName  string  `json:"item_name"`
	ItemPrice float64 `json:"item_price"`
}

// Receipt is the canonical structured record produced by the extraction
// pipeline. Monetary optionals are nil when the field could not be read;
// string fields are "" when unknown. ConfidenceScore is always set, 0.0
// meaning extraction produced nothing usable.
type Receipt struct {
	ID              uuid.UUID `json:"id,omitempty"`
	StoreName       string    `json:"store_name,omitempty"`
	Date            string    `json:"date,omitempty"` // YYYY-MM-DD
	Time            string    `json:"time,omitempty"` // HH:MM
	Items           []Item    `json:"items"`
	Subtotal        *float64  `json:"subtotal,omitempty"`
	Tax             *float64  `json:"tax,omitempty"`
	Total           *float64  `json:"total,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	Cashier         string    `json:"cashier,omitempty"`
	ConfidenceScore float32   `json:"confidence_score"`
	ExtractionPath  string    `json:"extraction_path,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// ItemsTotal sums item prices in document order.
func (r *Receipt) ItemsTotal() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.ItemPrice
	}
	return sum
}

// Consistent reports whether subtotal + tax equals total within a cent.
// It returns true when any of the three is absent; the check only has
// meaning when all are present.
func (r *Receipt) Consistent() bool {
	if r.Subtotal == nil || r.Tax == nil || r.Total == nil {
		return true
	}
	diff := *r.Subtotal + *r.Tax - *r.Total
	if diff < 0 {
		diff = -diff
	}
	return diff <= 0.011
}
