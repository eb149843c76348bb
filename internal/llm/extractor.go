// Package llm defines the AI extraction contract: normalized receipt
// text in, a schema-validated structured receipt out, with a typed
// error taxonomy the orchestrator can branch on.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"receiptd/internal/entity"
	"receiptd/internal/rules"
)

// Extractor is implemented by each language-model client. Extract
// returns the parsed receipt together with the raw validated JSON
// payload; on failure the error wraps ErrUnavailable, ErrTimeout or
// ErrMalformedOutput.
type Extractor interface {
	Extract(ctx context.Context, text string) (entity.Receipt, []byte, error)
}

type wireItem struct {
	ItemName  string  `json:"item_name"`
	ItemPrice float64 `json:"item_price"`
}

type wireReceipt struct {
	StoreName       string     `json:"store_name"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	Items           []wireItem `json:"items"`
	Subtotal        *float64   `json:"subtotal"`
	Tax             *float64   `json:"tax"`
	Total           *float64   `json:"total"`
	PaymentMethod   string     `json:"payment_method"`
	Cashier         string     `json:"cashier"`
	ConfidenceScore float32    `json:"confidence_score"`
}

// DecodeReceipt turns a sanitized, schema-valid payload into the
// canonical receipt. Dates and times are renormalized here so no format
// ambiguity leaks past the parsing boundary; the self-reported
// confidence is clamped into [0,1] and additionally capped when the
// arithmetic consistency check fails.
func DecodeReceipt(raw []byte) (entity.Receipt, error) {
	var w wireReceipt
	if err := json.Unmarshal(raw, &w); err != nil {
		return entity.Receipt{}, fmt.Errorf("%w: decode: %v", ErrMalformedOutput, err)
	}

	rec := entity.Receipt{
		StoreName:     w.StoreName,
		Date:          rules.NormalizeDate(w.Date),
		Time:          rules.NormalizeTime(w.Time),
		Subtotal:      w.Subtotal,
		Tax:           w.Tax,
		Total:         w.Total,
		PaymentMethod: w.PaymentMethod,
		Cashier:       w.Cashier,
		Items:         make([]entity.Item, 0, len(w.Items)),
	}
	for _, it := range w.Items {
		rec.Items = append(rec.Items, entity.Item{ItemName: it.ItemName, ItemPrice: it.ItemPrice})
	}

	conf := w.ConfidenceScore
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	// An internally inconsistent record is less trustworthy no matter
	// what the model claims about it.
	if !rec.Consistent() && conf > 0.55 {
		conf = 0.55
	}
	rec.ConfidenceScore = conf
	return rec, nil
}
