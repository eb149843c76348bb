// Package rules implements the deterministic receipt extractor: a
// regex/heuristic fallback that always produces a best-effort structured
// record from normalized text, with no AI service involved.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"receiptd/internal/entity"
)

// Deterministic extractions are capped below the AI path's typical
// range to reflect lower reliability.
const maxConfidence = 0.6

var (
	reSubtotal = regexp.MustCompile(`(?i)\bsub[- ]?total\b`)
	reTax      = regexp.MustCompile(`(?i)\btax\b`)
	reTotal    = regexp.MustCompile(`(?i)\btotal\b`)
	reCashier  = regexp.MustCompile(`(?i)\bcashier\b[:#]?\s*([A-Za-z][A-Za-z .'-]{0,40})`)
	reISODate  = regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`)
	reUSDate   = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{4}\b`)
	reClock    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::\d{2})?\s*([AaPp][Mm])?\b`)
	reHasAlpha = regexp.MustCompile(`[A-Za-z]`)
)

// leading text containing one of these never names an item.
var itemStopWords = []string{"subtotal", "sub total", "sub-total", "tax", "total", "change", "cash", "tend", "saved", "balance", "item", "price"}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract derives a structured receipt from normalized text. It never
// fails: with nothing recognizable it returns a record of unknowns with
// a confidence of 0.
func (e *Extractor) Extract(text string) entity.Receipt {
	lines := strings.Split(text, "\n")
	tokens := scanAmounts(lines)

	rec := entity.Receipt{
		StoreName:      storeName(lines),
		Date:           findDate(text),
		Time:           findTime(text),
		Cashier:        findCashier(text),
		PaymentMethod:  paymentMethod(text),
		Items:          []entity.Item{},
		ExtractionPath: entity.PathDeterministic,
	}

	found := claimKeywordFields(&rec, lines, tokens)
	rec.Items = collectItems(lines, tokens)
	deriveMissing(&rec)
	rec.ConfidenceScore = confidence(&rec, found)

	e.logger.Debug("rules.extract.done",
		"store", rec.StoreName,
		"items", len(rec.Items),
		"money_fields_found", found,
		"confidence", rec.ConfidenceScore,
	)
	return rec
}

// claimKeywordFields assigns subtotal, tax and total from tokens near
// their keywords and returns how many of the three were found in the
// text. Assignment prefers the nearest trailing claimable token on the
// keyword's own line; a keyword without one takes the next claimable
// token in scan order. Ambiguous multi-number lines resolve
// leftmost-first among claimable tokens, with percent-suffixed tokens
// excluded as rates.
func claimKeywordFields(rec *entity.Receipt, lines []string, tokens []*amount) int {
	type key struct {
		name string
		line int
		pos  int
	}
	var pending []key
	assign := func(name string, v float64) {
		switch name {
		case "subtotal":
			if rec.Subtotal == nil {
				rec.Subtotal = &v
			}
		case "tax":
			if rec.Tax == nil {
				rec.Tax = &v
			}
		case "total":
			if rec.Total == nil {
				rec.Total = &v
			}
		}
	}
	seen := map[string]bool{}

	for li, line := range lines {
		subLocs := reSubtotal.FindAllStringIndex(line, -1)
		keysOnLine := make([]key, 0, 3)
		if len(subLocs) > 0 && !seen["subtotal"] {
			keysOnLine = append(keysOnLine, key{"subtotal", li, subLocs[0][0]})
		}
		if loc := reTax.FindStringIndex(line); loc != nil && !seen["tax"] {
			keysOnLine = append(keysOnLine, key{"tax", li, loc[0]})
		}
		if loc := findTotalKeyword(line, subLocs); loc != nil && !seen["total"] {
			keysOnLine = append(keysOnLine, key{"total", li, loc[0]})
		}

		for _, k := range keysOnLine {
			seen[k.name] = true
			tok := trailingToken(tokens, k.line, k.pos)
			if tok == nil {
				pending = append(pending, k)
				continue
			}
			tok.claimed = true
			assign(k.name, tok.value)
		}
	}

	// Keywords without a trailing token settle after every same-line
	// claim: first the nearest token before the keyword on its own line
	// ("paid 1.30 tax"), then the next claimable token in scan order.
	for _, k := range pending {
		tok := precedingToken(tokens, k.line, k.pos)
		if tok == nil {
			tok = nextToken(tokens, k.line, k.pos)
		}
		if tok == nil {
			continue
		}
		tok.claimed = true
		assign(k.name, tok.value)
	}

	n := 0
	for _, name := range []string{"subtotal", "tax", "total"} {
		if seen[name] {
			n++
		}
	}
	return n
}

// findTotalKeyword locates a "total" that is not part of "subtotal".
func findTotalKeyword(line string, subLocs [][]int) []int {
	for _, loc := range reTotal.FindAllStringIndex(line, -1) {
		inside := false
		for _, sl := range subLocs {
			if loc[0] >= sl[0] && loc[1] <= sl[1] {
				inside = true
				break
			}
		}
		if !inside {
			return loc
		}
	}
	return nil
}

// trailingToken returns the first claimable token on the given line at
// or after pos.
func trailingToken(tokens []*amount, line, pos int) *amount {
	for _, t := range tokens {
		if t.line == line && t.start >= pos && t.claimable() {
			return t
		}
	}
	return nil
}

// precedingToken returns the nearest claimable token on the given line
// that ends before pos.
func precedingToken(tokens []*amount, line, pos int) *amount {
	var best *amount
	for _, t := range tokens {
		if t.line == line && t.end <= pos && t.claimable() {
			best = t
		}
	}
	return best
}

// nextToken returns the first claimable token strictly after (line, pos)
// in scan order.
func nextToken(tokens []*amount, line, pos int) *amount {
	for _, t := range tokens {
		if (t.line > line || (t.line == line && t.start >= pos)) && t.claimable() {
			return t
		}
	}
	return nil
}

// collectItems turns the remaining unclaimed tokens into items, in
// document order. A token that closes its line with readable text before
// it is named by that text; anything else gets an "Item N" placeholder,
// which covers casual free-form inputs with no line structure.
func collectItems(lines []string, tokens []*amount) []entity.Item {
	items := []entity.Item{}
	for _, t := range tokens {
		if !t.claimable() {
			continue
		}
		t.claimed = true
		name := ""
		if t.endOfLine {
			name = itemName(lines[t.line][:t.start])
		}
		if name == "" {
			name = fmt.Sprintf("Item %d", len(items)+1)
		} else if isStopWord(name) {
			// tendered cash, change due, savings lines: not purchases
			continue
		}
		items = append(items, entity.Item{ItemName: name, ItemPrice: t.value})
	}
	return items
}

func itemName(leading string) string {
	s := strings.Trim(leading, " \t$£€@*.:-")
	if s == "" || !reHasAlpha.MatchString(s) {
		return ""
	}
	if len(s) > 100 {
		s = strings.TrimSpace(s[:100])
	}
	return s
}

func isStopWord(name string) bool {
	low := strings.ToLower(name)
	for _, w := range itemStopWords {
		if strings.Contains(low, w) {
			return true
		}
	}
	return false
}

// deriveMissing fills arithmetic gaps the way a cashier would: items sum
// to the subtotal, subtotal plus tax makes the total.
func deriveMissing(rec *entity.Receipt) {
	if rec.Subtotal == nil && len(rec.Items) > 0 {
		v := round2(rec.ItemsTotal())
		rec.Subtotal = &v
	}
	if rec.Total == nil && rec.Subtotal != nil && rec.Tax != nil {
		v := round2(*rec.Subtotal + *rec.Tax)
		rec.Total = &v
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
