package document

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"receiptd/constants"
)

func (a *Adapter) extractImage(ctx context.Context, doc RawDocument, data []byte) (ExtractedText, error) {
	// Reject misdeclared payloads before spending OCR time on them.
	if sniff := http.DetectContentType(data); !strings.HasPrefix(sniff, "image/") {
		return ExtractedText{}, fmt.Errorf("%w: declared %s but content is %s",
			ErrUnsupportedFormat, constants.IMAGE, sniff)
	}

	path, cleanup, err := a.materialize(doc, data, ".png")
	if err != nil {
		return ExtractedText{}, err
	}
	defer cleanup()

	txt, warns, err := a.tesseractOCR(ctx, path)
	if err != nil {
		return ExtractedText{Warnings: warns}, err
	}
	if strings.TrimSpace(txt) == "" {
		return ExtractedText{Warnings: warns}, ErrNoTextFound
	}

	conf := a.ocrConfidence(ctx, path, txt)

	return ExtractedText{
		Text:       txt,
		Source:     "image-ocr",
		Pages:      1,
		Confidence: conf,
		Warnings:   warns,
	}, nil
}

func (a *Adapter) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", a.cfg.TesseractLang}
	if a.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(a.cfg.PSM))
	}
	if a.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", a.cfg.TessdataDir)
	}

	out, errb, err := a.runner.Run(ctx, a.cfg.Tesseract, args...)
	if err != nil {
		if toolMissing(err) {
			return "", nil, fmt.Errorf("%w: tesseract not installed", ErrExtractionUnavailable)
		}
		return "", []string{string(errb)}, fmt.Errorf("%w: tesseract: %v", ErrExtractionUnavailable, err)
	}
	return string(out), nil, nil
}

// ocrConfidence blends the tesseract word-level confidence with a text
// heuristic, weighting the engine signal higher when it is available.
func (a *Adapter) ocrConfidence(ctx context.Context, path, txt string) float32 {
	heur := heuristicConfidence(txt)
	engine, err := a.tesseractTSVConfidence(ctx, path)
	if err != nil || engine <= 0 {
		return heur
	}
	conf := 0.7*engine + 0.3*heur
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns the mean
// word confidence in 0..1.
func (a *Adapter) tesseractTSVConfidence(ctx context.Context, path string) (float32, error) {
	args := []string{path, "stdout", "-l", a.cfg.TesseractLang}
	if a.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(a.cfg.PSM))
	}
	if a.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", a.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, _, err := a.runner.Run(ctx, a.cfg.Tesseract, args...)
	if err != nil {
		return 0, err
	}

	var sum, n float64
	for i, ln := range strings.Split(string(out), "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10] // conf column; text is the 12th and may contain tabs

		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float32(sum / n / 100.0), nil
}
