package document

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"receiptd/constants"
	"receiptd/internal/common"
)

// RawDocument is the opaque input to one extraction request: bytes (or a
// path to them) plus a declared kind. It lives only for the duration of
// the request.
type RawDocument struct {
	Path        string // optional; read lazily when Data is empty
	Data        []byte
	Name        string // original filename hint
	ContentType string // declared MIME type, e.g. from the upload
}

// ExtractedText is plain text plus provenance. Immutable once produced.
type ExtractedText struct {
	Text       string
	Source     string // "text" | "pdf-text" | "pdf-ocr" | "image-ocr"
	Pages      int
	Confidence float32 // OCR quality signal in 0..1; 0 when not applicable
	Warnings   []string
	Duration   time.Duration
}

// Adapter dispatches a RawDocument to the matching text producer.
type Adapter struct {
	cfg    common.OCRConfig
	runner Runner
	logger *slog.Logger
}

func NewAdapter(cfg common.OCRConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Adapter{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract routes the document by its declared kind, sniffing content to
// reject misdeclared inputs, and produces the single text form consumed
// by the rest of the pipeline.
func (a *Adapter) Extract(ctx context.Context, doc RawDocument) (ExtractedText, error) {
	start := time.Now()

	data, err := a.payload(doc)
	if err != nil {
		return ExtractedText{}, err
	}
	if len(data) == 0 {
		return ExtractedText{}, fmt.Errorf("%w: empty document", ErrNoTextFound)
	}

	kind := declaredKind(doc)
	if kind == "" {
		kind = sniffKind(data)
	}
	a.logger.Debug("document.extract.start", "kind", kind, "name", doc.Name, "bytes", len(data))

	var res ExtractedText
	switch kind {
	case constants.TEXT:
		res, err = a.passThrough(data)
	case constants.IMAGE:
		res, err = a.extractImage(ctx, doc, data)
	case constants.PDF:
		res, err = a.extractPDF(ctx, doc, data)
	default:
		return ExtractedText{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, firstNonEmpty(doc.ContentType, filepath.Ext(doc.Name)))
	}
	if err != nil {
		a.logger.Error("document.extract.failed", "kind", kind, "name", doc.Name, "error", err)
		return res, err
	}

	res.Duration = time.Since(start)
	a.logger.Info("document.extract.ok",
		"kind", kind,
		"source", res.Source,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (a *Adapter) payload(doc RawDocument) ([]byte, error) {
	if len(doc.Data) > 0 {
		return doc.Data, nil
	}
	if doc.Path == "" {
		return nil, fmt.Errorf("%w: no document content", ErrNoTextFound)
	}
	b, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExtractionUnavailable, doc.Path, err)
	}
	return b, nil
}

func (a *Adapter) passThrough(data []byte) (ExtractedText, error) {
	if !utf8.Valid(data) {
		return ExtractedText{}, fmt.Errorf("%w: declared text is not valid UTF-8", ErrUnsupportedFormat)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return ExtractedText{}, ErrNoTextFound
	}
	return ExtractedText{Text: text, Source: "text", Pages: 1, Confidence: 1.0}, nil
}

// declaredKind resolves the caller-declared kind from content type or
// filename extension.
func declaredKind(doc RawDocument) string {
	if f := constants.MapContentTypeToFormat(doc.ContentType); f != "" {
		return f
	}
	if f := constants.MapExtToFormat(filepath.Ext(doc.Name)); f != "" {
		return f
	}
	return ""
}

// sniffKind guesses the kind from content when nothing was declared.
func sniffKind(data []byte) string {
	ct := http.DetectContentType(data)
	return constants.MapContentTypeToFormat(ct)
}

// materialize ensures the document exists as a file on disk, which the
// OCR tools require. Returns the path and a cleanup func.
func (a *Adapter) materialize(doc RawDocument, data []byte, ext string) (string, func(), error) {
	if doc.Path != "" {
		return doc.Path, func() {}, nil
	}
	f, err := os.CreateTemp("", "receiptd-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("%w: temp file: %v", ErrExtractionUnavailable, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("%w: temp write: %v", ErrExtractionUnavailable, err)
	}
	_ = f.Close()
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return "unknown"
}
