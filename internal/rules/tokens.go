package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// reAmount matches decimal numbers with one or two fraction digits,
// optionally with thousands separators. Integers are deliberately not
// matched: bare integers on receipts are usually quantities or codes.
var reAmount = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d{1,2}|\d+\.\d{1,2}`)

// amount is one monetary token found in the text, in scan order.
type amount struct {
	value     float64
	line      int // line index
	start     int // byte offset within the line
	end       int
	currency  bool // prefixed with a currency symbol
	rate      bool // suffixed with '%': a rate, never an amount
	negative  bool
	endOfLine bool // nothing but whitespace follows on the line
	claimed   bool
}

// scanAmounts collects every monetary token line by line, preserving
// document order. Rate tokens (e.g. the 8.0 in "TAX 8.0% $0.79") and
// negative tokens are kept but flagged; claiming skips them.
func scanAmounts(lines []string) []*amount {
	var out []*amount
	for li, line := range lines {
		for _, loc := range reAmount.FindAllStringIndex(line, -1) {
			s, e := loc[0], loc[1]
			raw := strings.ReplaceAll(line[s:e], ",", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			a := &amount{value: v, line: li, start: s, end: e}
			if p := prevNonSpace(line, s); p == '$' || p == '£' || p == '€' {
				a.currency = true
			} else if p == '-' {
				a.negative = true
			}
			if e < len(line) && line[e] == '%' {
				a.rate = true
			}
			a.endOfLine = strings.TrimSpace(line[e:]) == ""
			out = append(out, a)
		}
	}
	return out
}

func prevNonSpace(line string, i int) rune {
	rs := []rune(line[:i])
	for j := len(rs) - 1; j >= 0; j-- {
		if rs[j] != ' ' {
			return rs[j]
		}
	}
	return 0
}

// claimable reports whether the token can be assigned to a field or item.
func (a *amount) claimable() bool {
	return !a.claimed && !a.rate && !a.negative
}
