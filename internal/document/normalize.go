package document

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses noisy whitespace and strips control characters
// from extracted text. It is a pure function and deliberately never
// touches digits, decimal points, or currency punctuation: the
// downstream extractors depend on their exact form.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\uFEFF", "") // BOM
	s = reCRLF.ReplaceAllString(s, "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune('\n')
		case r == '\t', r == '\u00a0':
			b.WriteRune(' ')
		case r == '\u200b', r == '\u200c', r == '\u200d':
			// zero-width characters
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			// control / format characters
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
