package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/entity"
	"receiptd/internal/repository"
	"receiptd/internal/rules"
)

type listResponse struct {
	Receipts []*entity.Receipt `json:"receipts"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var rec entity.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateReceipt(&rec); err != nil {
		writeError(w, err)
		return
	}
	rec.ID = uuid.Nil
	if err := s.receipts.Create(r.Context(), &rec); err != nil {
		s.logger.Error("http.receipts.create_failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	f := repository.Filter{
		Store:    r.URL.Query().Get("store"),
		DateFrom: r.URL.Query().Get("start_date"),
		DateTo:   r.URL.Query().Get("end_date"),
	}
	s.listWithFilter(w, r, f)
}

func (s *Server) handleListByStore(w http.ResponseWriter, r *http.Request) {
	s.listWithFilter(w, r, repository.Filter{Store: chi.URLParam(r, "store")})
}

func (s *Server) handleListByDateRange(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("start_date")
	to := r.URL.Query().Get("end_date")
	if from == "" || to == "" {
		writeDetail(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	s.listWithFilter(w, r, repository.Filter{DateFrom: from, DateTo: to})
}

func (s *Server) listWithFilter(w http.ResponseWriter, r *http.Request, f repository.Filter) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	if skip < 0 {
		skip = 0
	}
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	f.Limit = limit
	f.Offset = skip

	recs, err := s.receipts.List(r.Context(), f)
	if err != nil {
		s.logger.Error("http.receipts.list_failed", "error", err)
		writeError(w, err)
		return
	}
	total, err := s.receipts.Count(r.Context(), f)
	if err != nil {
		s.logger.Error("http.receipts.count_failed", "error", err)
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Receipts: recs,
		Total:    total,
		Page:     skip/limit + 1,
		Size:     limit,
	})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid receipt id")
		return
	}
	rec, err := s.receipts.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid receipt id")
		return
	}
	var rec entity.Receipt
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := validateReceipt(&rec); err != nil {
		writeError(w, err)
		return
	}
	rec.ID = id
	if err := s.receipts.Update(r.Context(), &rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid receipt id")
		return
	}
	if err := s.receipts.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateReceipt enforces the invariants persistence relies on and
// renormalizes date and time so lookups stay comparable.
func validateReceipt(rec *entity.Receipt) error {
	for _, v := range []*float64{rec.Subtotal, rec.Tax, rec.Total} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: money fields must be non-negative", common.ErrInvalidInput)
		}
	}
	for i, it := range rec.Items {
		if it.ItemPrice < 0 {
			return fmt.Errorf("%w: item %d has negative price", common.ErrInvalidInput, i)
		}
	}
	if rec.ConfidenceScore < 0 || rec.ConfidenceScore > 1 {
		return fmt.Errorf("%w: confidence_score must be within [0,1]", common.ErrInvalidInput)
	}
	rec.Date = rules.NormalizeDate(rec.Date)
	rec.Time = rules.NormalizeTime(rec.Time)
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
