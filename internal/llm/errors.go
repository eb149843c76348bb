package llm

import (
	"context"
	"errors"
	"fmt"
)

// AI-layer errors. The orchestrator recovers from all of them by falling
// back to the deterministic extractor; none ever surfaces to a caller.
var (
	// ErrUnavailable means the language-model service cannot be reached:
	// missing credentials, no connectivity, or a non-success response.
	ErrUnavailable = errors.New("ai service unavailable")

	// ErrTimeout means the single bounded attempt ran out of time.
	ErrTimeout = errors.New("ai request timed out")

	// ErrMalformedOutput means the response did not survive schema
	// validation after parsing. The record is not partially trusted.
	ErrMalformedOutput = errors.New("ai response does not match receipt schema")
)

// Fallible reports whether err is one of the AI-layer errors the
// orchestrator absorbs by falling back.
func Fallible(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedOutput)
}

// ClassifyTransport maps a transport failure onto the error taxonomy:
// deadline expiry is a timeout, anything else is unavailability.
func ClassifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
