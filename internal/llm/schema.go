package llm

// BuildReceiptJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We pass this to the model as a structured output constraint and also use it locally
// to validate whatever came back.
func BuildReceiptJSONSchema() map[string]any {
	itemProps := map[string]any{
		"item_name":  map[string]any{"type": "string", "minLength": 1},
		"item_price": moneyProp(),
	}

	props := map[string]any{
		"store_name": map[string]any{"type": "string"},
		"date":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"time":       map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}$`},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           itemProps,
				"required":             []string{"item_name", "item_price"},
			},
		},
		"subtotal":         moneyProp(),
		"tax":              moneyProp(),
		"total":            moneyProp(),
		"payment_method":   map[string]any{"type": "string"},
		"cashier":          map[string]any{"type": "string"},
		"confidence_score": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"store_name", "items", "confidence_score"}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func moneyProp() map[string]any {
	return map[string]any{
		"type":    "number",
		"minimum": 0.0,
	}
}
