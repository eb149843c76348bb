package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"receiptd/constants"
	"receiptd/internal/document"
	"receiptd/internal/entity"
)

const maxUploadBytes = 32 << 20

type extractResponse struct {
	entity.Receipt
	RawFilename     string `json:"raw_filename,omitempty"`
	CuratedFilename string `json:"curated_filename,omitempty"`
}

// handleUpload accepts a multipart document, runs the full extraction
// pipeline and persists the result. Document-layer failures come back as
// 400s; AI-layer failures never surface because the pipeline falls back.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	result, err := s.pipeline.ProcessDocument(r.Context(), document.RawDocument{
		Data:        data,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.persistAndRespond(w, r, result.Receipt, result.Text.Text, sourceType(header.Filename))
}

// handleText runs extraction over raw text supplied in the body.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeDetail(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.pipeline.ProcessText(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	s.persistAndRespond(w, r, result.Receipt, result.Text.Text, "text")
}

func (s *Server) persistAndRespond(w http.ResponseWriter, r *http.Request, rec entity.Receipt, text, source string) {
	rawFilename, err := s.artifacts.SaveRaw(text, source)
	if err != nil {
		s.logger.Warn("http.extract.raw_artifact_failed", "error", err)
	}

	if err := s.receipts.Create(r.Context(), &rec); err != nil {
		s.logger.Error("http.extract.persist_failed", "error", err)
		writeError(w, err)
		return
	}

	curatedFilename, err := s.artifacts.SaveCurated(rec, rec.ID, rawFilename)
	if err != nil {
		s.logger.Warn("http.extract.curated_artifact_failed", "error", err)
	}

	writeJSON(w, http.StatusCreated, extractResponse{
		Receipt:         rec,
		RawFilename:     rawFilename,
		CuratedFilename: curatedFilename,
	})
}

func sourceType(name string) string {
	switch constants.MapExtToFormat(filepath.Ext(name)) {
	case constants.PDF:
		return "pdf"
	case constants.IMAGE:
		return "image"
	default:
		return "text"
	}
}
