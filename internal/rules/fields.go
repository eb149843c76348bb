package rules

import (
	"strings"
	"time"
)

// Known retailers, matched case-insensitively anywhere in the text. A
// match wins over the first-line heuristic because casual descriptions
// ("i went costco ...") bury the store mid-sentence.
var retailers = []string{
	"walmart", "target", "costco", "kroger", "safeway", "aldi", "publix",
	"whole foods", "trader joe", "walgreens", "cvs", "home depot",
	"best buy", "ikea", "dollar general", "7-eleven",
}

// Fixed payment vocabulary; earliest match in the text wins, longer
// phrases checked at equal positions.
var paymentMethods = []string{"credit card", "debit card", "cash", "check"}

func storeName(lines []string) string {
	for _, line := range lines {
		low := strings.ToLower(line)
		for _, r := range retailers {
			if strings.Contains(low, r) {
				return strings.ToUpper(r)
			}
		}
	}
	// First line that reads as text rather than numbers.
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !reHasAlpha.MatchString(line) || reAmount.MatchString(line) {
			continue
		}
		if len(line) > 100 {
			line = strings.TrimSpace(line[:100])
		}
		return line
	}
	return ""
}

func paymentMethod(text string) string {
	low := strings.ToLower(text)
	best := ""
	bestPos := -1
	for _, pm := range paymentMethods {
		pos := indexWord(low, pm)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(pm) > len(best)) {
			best, bestPos = pm, pos
		}
	}
	return best
}

// indexWord finds needle at word boundaries, so "cash" never fires on
// "cashier" and "check" never fires on "checkout".
func indexWord(haystack, needle string) int {
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		before := i == 0 || !isWordByte(haystack[i-1])
		afterIdx := i + len(needle)
		after := afterIdx >= len(haystack) || !isWordByte(haystack[afterIdx])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

var dateLayouts = []string{"2006-1-2", "1-2-2006", "2-1-2006", "2006/1/2", "1/2/2006", "2/1/2006"}

func findDate(text string) string {
	cand := reISODate.FindString(text)
	if cand == "" {
		cand = reUSDate.FindString(text)
	}
	if cand == "" {
		return ""
	}
	return NormalizeDate(cand)
}

// NormalizeDate parses common receipt date shapes and renders
// YYYY-MM-DD, preferring month-first for ambiguous forms. Returns ""
// when nothing parses.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	norm := strings.ReplaceAll(s, "/", "-")
	for _, layout := range dateLayouts {
		layout = strings.ReplaceAll(layout, "/", "-")
		if t, err := time.Parse(layout, norm); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func findTime(text string) string {
	m := reClock.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return NormalizeTime(m[0])
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04:05 PM"}

// NormalizeTime parses common clock shapes and renders HH:MM (24h), or
// "" when nothing parses.
func NormalizeTime(s string) string {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

func findCashier(text string) string {
	m := reCashier.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
