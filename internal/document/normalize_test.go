package document

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "crlf to lf",
			in:   "TOTAL 6.05\r\nTAX 0.45\r\n",
			want: "TOTAL 6.05\nTAX 0.45",
		},
		{
			name: "collapses runs of spaces and tabs",
			in:   "MILK\t\t3.48\nBREAD   2.12",
			want: "MILK 3.48\nBREAD 2.12",
		},
		{
			name: "collapses blank line runs to one blank line",
			in:   "STORE\n\n\n\n\nTOTAL 1.00",
			want: "STORE\n\nTOTAL 1.00",
		},
		{
			name: "strips zero-width and control characters",
			in:   "TO\u200bTAL\x00 6.05\u200d",
			want: "TOTAL 6.05",
		},
		{
			name: "trims line edges and outer whitespace",
			in:   "  STORE  \n  TOTAL 6.05  ",
			want: "STORE\nTOTAL 6.05",
		},
		{
			name: "empty stays empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Digits and currency punctuation must survive untouched: the extractors
// downstream parse them positionally.
func TestNormalizePreservesAmounts(t *testing.T) {
	inputs := []string{
		"SUBTOTAL $9.88",
		"TAX 8.0% $0.79",
		"1,234.56 TOTAL",
		"DISCOUNT -2.00",
	}
	for _, in := range inputs {
		if got := Normalize(in); got != in {
			t.Errorf("Normalize(%q) = %q, amounts must be preserved", in, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"STORE\r\n\r\n\r\nTOTAL\t6.05  ",
		"  a  b  ",
		"plain",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
