package document

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"receiptd/internal/common"
)

type stubRunner struct {
	run func(name string, args ...string) ([]byte, []byte, error)
}

func (s stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	return s.run(name, args...)
}

// minimal valid PNG header so content sniffing sees an image
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func newTestAdapter(t *testing.T, r Runner) *Adapter {
	t.Helper()
	a := NewAdapter(common.OCRConfig{}, nil)
	if r != nil {
		a.runner = r
	}
	return a
}

func TestExtractTextPassThrough(t *testing.T) {
	a := newTestAdapter(t, nil)
	res, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.txt",
		Data: []byte("SUBTOTAL 9.88\nTOTAL 10.67"),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Source != "text" {
		t.Errorf("source = %q, want text", res.Source)
	}
	if !strings.Contains(res.Text, "10.67") {
		t.Errorf("text lost content: %q", res.Text)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Confidence)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{Name: "receipt.txt"})
	if !errors.Is(err, ErrNoTextFound) {
		t.Errorf("err = %v, want ErrNoTextFound", err)
	}
}

func TestExtractBlankText(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.txt",
		Data: []byte("   \n\t\n"),
	})
	if !errors.Is(err, ErrNoTextFound) {
		t.Errorf("err = %v, want ErrNoTextFound", err)
	}
}

func TestExtractUnknownFormat(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{
		Name:        "receipt.docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:        []byte{0x50, 0x4b, 0x03, 0x04},
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractMisdeclaredImage(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{
		Name:        "receipt.png",
		ContentType: "image/png",
		Data:        []byte("this is just text pretending to be an image"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractImageOCR(t *testing.T) {
	runner := stubRunner{run: func(name string, args ...string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
				"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tTOTAL\n" +
				"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t80\t6.05\n"
			return []byte(tsv), nil, nil
		}
		return []byte("TOTAL 6.05\n"), nil, nil
	}}
	a := newTestAdapter(t, runner)

	res, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.png",
		Data: pngHeader,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Source != "image-ocr" {
		t.Errorf("source = %q, want image-ocr", res.Source)
	}
	if !strings.Contains(res.Text, "TOTAL 6.05") {
		t.Errorf("text = %q", res.Text)
	}
	// engine mean conf is 85% -> 0.85; blended with the heuristic it must
	// stay in range and reflect the engine signal
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Errorf("confidence out of range: %v", res.Confidence)
	}
}

func TestExtractImageOCRToolMissing(t *testing.T) {
	runner := stubRunner{run: func(name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, &exec.Error{Name: name, Err: exec.ErrNotFound}
	}}
	a := newTestAdapter(t, runner)

	_, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.png",
		Data: pngHeader,
	})
	if !errors.Is(err, ErrExtractionUnavailable) {
		t.Errorf("err = %v, want ErrExtractionUnavailable", err)
	}
}

func TestExtractImageOCREmptyOutput(t *testing.T) {
	runner := stubRunner{run: func(name string, args ...string) ([]byte, []byte, error) {
		return []byte("  \n"), nil, nil
	}}
	a := newTestAdapter(t, runner)

	_, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.png",
		Data: pngHeader,
	})
	if !errors.Is(err, ErrNoTextFound) {
		t.Errorf("err = %v, want ErrNoTextFound", err)
	}
}

func TestExtractPDFBadMagic(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.pdf",
		Data: []byte("not a pdf at all"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractPDFCorrupt(t *testing.T) {
	a := newTestAdapter(t, nil)
	_, err := a.Extract(context.Background(), RawDocument{
		Name: "receipt.pdf",
		Data: []byte("%PDF-1.4 this is not a real document"),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestHeuristicConfidence(t *testing.T) {
	rich := heuristicConfidence("WALMART\n08/15/2026\nSUBTOTAL $5.60\nTAX $0.45\nTOTAL $6.05\n" + strings.Repeat("x", 150))
	poor := heuristicConfidence("x")
	if rich <= poor {
		t.Errorf("rich text should score above poor text: %v <= %v", rich, poor)
	}
	if rich > 1.0 {
		t.Errorf("confidence capped at 1.0, got %v", rich)
	}
}
