package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// ExtractJSONBlock strips markdown code fences and slices out the first
// top-level JSON object. Models wrap their output in ```json fences often
// enough that refusing to unwrap would fail otherwise-valid responses.
func ExtractJSONBlock(content string) ([]byte, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrMalformedOutput)
	}
	return []byte(s[start : end+1]), nil
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (merchant_name -> store_name, confidence -> confidence_score)
// - Drops null/empty optionals and negative money values
// - Coerces string -> number for money-ish fields
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("merchant_name", "store_name")
	renamed("merchant", "store_name")
	renamed("store", "store_name")
	renamed("tx_date", "date")
	renamed("payment", "payment_method")
	renamed("confidence", "confidence_score")

	// 2) coerce money fields; drop null/empty/negative
	for _, k := range []string{"subtotal", "tax", "total"} {
		if v, ok := m[k]; ok {
			f, ok := coerceNumber(v)
			if !ok || f < 0 {
				delete(m, k)
				dropped = append(dropped, k+"(bad)")
				continue
			}
			m[k] = f
		}
	}

	// 3) items: normalize each entry; an items value that isn't an array is noise
	if v, ok := m["items"]; ok {
		arr, ok := v.([]any)
		if !ok {
			delete(m, "items")
			dropped = append(dropped, "items(type)")
		} else {
			clean := make([]any, 0, len(arr))
			for i, e := range arr {
				it, ok := e.(map[string]any)
				if !ok {
					dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
					continue
				}
				if cleaned, ok := sanitizeItem(it, len(clean)+1); ok {
					clean = append(clean, cleaned)
				} else {
					dropped = append(dropped, fmt.Sprintf("items[%d](bad)", i))
				}
			}
			m["items"] = clean
		}
	}

	// 4) confidence_score: clamp into range rather than failing validation
	if v, ok := m["confidence_score"]; ok {
		f, ok := coerceNumber(v)
		if !ok {
			delete(m, "confidence_score")
			dropped = append(dropped, "confidence_score(bad)")
		} else {
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			m["confidence_score"] = f
		}
	}

	// 5) remove unknown keys (everything not in the schema set below)
	allowed := map[string]struct{}{
		"store_name": {}, "date": {}, "time": {}, "items": {},
		"subtotal": {}, "tax": {}, "total": {},
		"payment_method": {}, "cashier": {}, "confidence_score": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 6) trim obvious strings; drop empties so the schema's omit rule holds
	for _, k := range []string{"store_name", "date", "time", "payment_method", "cashier"} {
		if v, ok := m[k]; ok {
			s, ok := v.(string)
			if !ok {
				delete(m, k)
				dropped = append(dropped, k+"(type)")
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func sanitizeItem(it map[string]any, position int) (map[string]any, bool) {
	if v, ok := it["name"]; ok {
		if _, exists := it["item_name"]; !exists {
			it["item_name"] = v
		}
		delete(it, "name")
	}
	if v, ok := it["price"]; ok {
		if _, exists := it["item_price"]; !exists {
			it["item_price"] = v
		}
		delete(it, "price")
	}

	price, ok := coerceNumber(it["item_price"])
	if !ok || price < 0 {
		return nil, false
	}

	name, _ := it["item_name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Item %d", position)
	}
	return map[string]any{"item_name": name, "item_price": price}, true
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
