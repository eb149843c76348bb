package llm

import "strings"

const promptTextLimit = 6000

// BuildSystemPrompt composes the system message with the exact output
// contract the schema enforces, plus the derivation rules for fields the
// receipt text leaves implicit.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a receipts parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD) and 24-hour times (HH:MM).",
		"Each purchased line item goes in 'items' with keys 'item_name' and 'item_price'.",
		"If an item has a price but no readable name, name it 'Item N' where N is its position starting at 1.",
		"Do not list subtotal, tax, total, change, or tender lines as items.",
		"If 'subtotal' is not printed, compute it as the sum of item prices.",
		"If 'total' is not printed but subtotal and tax are, compute total = subtotal + tax.",
		"All money values are non-negative numbers, never strings.",
		"'payment_method' is the payment instrument as printed (e.g. credit card, debit card, cash, check).",
		"'confidence_score' is your own 0..1 estimate of extraction quality.",
		"Never output null. If a field is not present and cannot be derived, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the normalized receipt text. Text is clamped so a
// pathological OCR blob cannot blow the request past the model's window.
func BuildUserPrompt(text string) string {
	t := strings.TrimSpace(text)

	var b strings.Builder
	b.WriteString("Receipt text:\n")
	if len(t) > promptTextLimit {
		b.WriteString(t[:promptTextLimit])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(t)
	}
	return b.String()
}
