package server

import (
	"fmt"
	"net/http"
	"time"

	"receiptd/internal/repository"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.analytics.Summary(r.Context())
	if err != nil {
		s.logger.Error("http.analytics_failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	f := repository.Filter{
		Store:    r.URL.Query().Get("store"),
		DateFrom: r.URL.Query().Get("start_date"),
		DateTo:   r.URL.Query().Get("end_date"),
	}
	data, err := s.export.ExportReceiptsXLSX(r.Context(), f)
	if err != nil {
		s.logger.Error("http.export_failed", "error", err)
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("receipts_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
