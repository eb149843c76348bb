package rules

import "receiptd/internal/entity"

// confidence scores a deterministic extraction by which fields were
// recovered, weighted like the shapes that matter on a receipt, then
// capped at maxConfidence. moneyFieldsFound counts how many of
// subtotal/tax/total appeared in the text itself (derived values do not
// count); fewer than two of them scales the score down by 0.7.
func confidence(rec *entity.Receipt, moneyFieldsFound int) float32 {
	var score float32
	if rec.StoreName != "" {
		score += 0.15
	}
	if rec.Date != "" {
		score += 0.15
	}
	if rec.Time != "" {
		score += 0.10
	}
	if rec.Subtotal != nil && *rec.Subtotal > 0 {
		score += 0.20
	}
	if rec.Tax != nil {
		score += 0.15
	}
	if rec.Total != nil && *rec.Total > 0 {
		score += 0.20
	}
	if rec.PaymentMethod != "" {
		score += 0.05
	}
	if len(rec.Items) > 0 {
		score += 0.20
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	if moneyFieldsFound < 2 {
		score *= 0.7
	}
	return score
}
