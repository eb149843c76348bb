package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Minimum characters per page below which an embedded text layer is
// considered useless (scanned pages carry only artifacts).
const minCharsPerPage = 10

func (a *Adapter) extractPDF(ctx context.Context, doc RawDocument, data []byte) (ExtractedText, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return ExtractedText{}, fmt.Errorf("%w: not a PDF payload", ErrUnsupportedFormat)
	}

	// Structure-level validation up front: a corrupt or encrypted PDF is
	// an unsupported input, not an OCR failure.
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return ExtractedText{}, fmt.Errorf("%w: invalid PDF: %v", ErrUnsupportedFormat, err)
	}
	pages := pctx.PageCount
	scanned := hasImageStreams(pctx)

	path, cleanup, err := a.materialize(doc, data, ".pdf")
	if err != nil {
		return ExtractedText{}, err
	}
	defer cleanup()

	var warns []string

	// Embedded text layer first.
	text, warn, textErr := a.pdfToText(ctx, path)
	warns = append(warns, warn...)
	if textErr == nil && len(strings.TrimSpace(text)) >= minCharsPerPage*pages {
		return ExtractedText{
			Text:       text,
			Source:     "pdf-text",
			Pages:      pages,
			Confidence: heuristicConfidence(text),
			Warnings:   warns,
		}, nil
	}

	// Thin or missing text layer: rasterize and OCR page by page. Only
	// worth attempting when the document actually carries image streams
	// or the text tool was unavailable.
	if textErr != nil && !toolMissing(textErr) && !scanned {
		return ExtractedText{}, fmt.Errorf("%w: pdftotext: %v", ErrExtractionUnavailable, textErr)
	}

	ocrText, ocrWarns, ocrErr := a.pdfOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	if ocrErr != nil {
		// Fall back to whatever the text layer produced, if anything.
		if textErr == nil && strings.TrimSpace(text) != "" {
			return ExtractedText{Text: text, Source: "pdf-text", Pages: pages, Confidence: heuristicConfidence(text), Warnings: warns}, nil
		}
		return ExtractedText{Warnings: warns}, ocrErr
	}
	if strings.TrimSpace(ocrText) == "" {
		if strings.TrimSpace(text) != "" {
			return ExtractedText{Text: text, Source: "pdf-text", Pages: pages, Confidence: heuristicConfidence(text), Warnings: warns}, nil
		}
		return ExtractedText{Warnings: warns}, ErrNoTextFound
	}

	return ExtractedText{
		Text:       ocrText,
		Source:     "pdf-ocr",
		Pages:      pages,
		Confidence: heuristicConfidence(ocrText),
		Warnings:   warns,
	}, nil
}

func (a *Adapter) pdfToText(ctx context.Context, path string) (string, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := a.runner.Run(ctx, a.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", []string{string(errb)}, err
	}
	return string(out), nil, nil
}

func (a *Adapter) pdfOCR(ctx context.Context, path string) (string, []string, error) {
	tmpDir, err := os.MkdirTemp("", "receiptd-pp-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w: temp dir: %v", ErrExtractionUnavailable, err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := a.runner.Run(ctx, a.cfg.Pdftoppm, "-r", strconv.Itoa(a.cfg.DPI), "-png", path, prefix)
	if err != nil {
		if toolMissing(err) {
			return "", nil, fmt.Errorf("%w: pdftoppm not installed", ErrExtractionUnavailable)
		}
		return "", []string{string(errb)}, fmt.Errorf("%w: pdftoppm: %v", ErrExtractionUnavailable, err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if a.cfg.MaxPages > 0 && len(matches) > a.cfg.MaxPages {
		matches = matches[:a.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", []string{"pdftoppm produced no images"}, ErrNoTextFound
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := a.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if err != nil {
			if toolMissing(err) {
				return "", warns, err
			}
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // page break marker
		}
		b.WriteString(txt)
	}
	return b.String(), warns, nil
}

// hasImageStreams checks if the PDF contains image XObjects, which marks
// it as a likely scan.
func hasImageStreams(pctx *model.Context) bool {
	if pctx.Optimize == nil {
		return false
	}
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(pctx, pageNr)) > 0 {
			return true
		}
	}
	return false
}
