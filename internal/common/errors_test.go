package common

import (
	"errors"
	"testing"
)

func TestAppError(t *testing.T) {
	app := NewAppError("not_found", "receipt missing", ErrNotFound)

	if got := app.Error(); got != "not_found: receipt missing: resource not found" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(app, ErrNotFound) {
		t.Error("cause must unwrap")
	}

	bare := NewAppError("internal", "internal server error", nil)
	if got := bare.Error(); got != "internal: internal server error" {
		t.Errorf("Error() without cause = %q", got)
	}
}
