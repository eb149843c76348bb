package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"receiptd/internal/common"
	"receiptd/internal/document"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// classifyError maps domain errors onto a stable application error with
// a machine-readable code, and the HTTP status to serve it under.
// Document-layer failures are the caller's problem (bad upload), storage
// misses are 404, anything else is a 500 with the detail withheld.
func classifyError(err error) (*common.AppError, int) {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return common.NewAppError("unsupported_format", err.Error(), err), http.StatusBadRequest
	case errors.Is(err, document.ErrExtractionUnavailable):
		return common.NewAppError("extraction_unavailable", err.Error(), err), http.StatusBadRequest
	case errors.Is(err, document.ErrNoTextFound):
		return common.NewAppError("no_text_found", err.Error(), err), http.StatusBadRequest
	case errors.Is(err, common.ErrInvalidInput):
		return common.NewAppError("invalid_input", err.Error(), err), http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return common.NewAppError("not_found", err.Error(), err), http.StatusNotFound
	default:
		return common.NewAppError("internal", "internal server error", err), http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	app, status := classifyError(err)
	writeJSON(w, status, errorBody{Detail: app.Message, Code: app.Code})
}
