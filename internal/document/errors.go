package document

import "errors"

// Adapter-layer errors. All three are fatal to the request: without text
// there is no pipeline input. They are distinct conditions and are never
// collapsed into an empty string.
var (
	// ErrUnsupportedFormat means the declared or detected document kind
	// cannot be routed to any text-producing collaborator.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionUnavailable means the upstream text producer (OCR
	// engine, PDF tooling) is missing or failed outright.
	ErrExtractionUnavailable = errors.New("text extraction unavailable")

	// ErrNoTextFound means extraction ran but produced no text.
	ErrNoTextFound = errors.New("no extractable text found")
)
