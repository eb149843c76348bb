// Package server exposes the extraction pipeline and receipt store over
// HTTP. Routes live under /api/v1; all bodies are JSON except the XLSX
// export and the multipart upload.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"receiptd/internal/artifact"
	"receiptd/internal/common"
	"receiptd/internal/export"
	"receiptd/internal/pipeline"
	"receiptd/internal/repository"
)

type Server struct {
	logger *slog.Logger
	http   *http.Server

	pipeline  *pipeline.Service
	receipts  repository.ReceiptRepository
	analytics repository.AnalyticsRepository
	export    *export.Service
	artifacts *artifact.Store
	db        *repository.DB
}

func New(
	cfg common.ServerConfig,
	pl *pipeline.Service,
	receipts repository.ReceiptRepository,
	analytics repository.AnalyticsRepository,
	exp *export.Service,
	artifacts *artifact.Store,
	db *repository.DB,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:    logger,
		pipeline:  pl,
		receipts:  receipts,
		analytics: analytics,
		export:    exp,
		artifacts: artifacts,
		db:        db,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/receipts", func(r chi.Router) {
			r.Post("/", s.handleCreateReceipt)
			r.Get("/", s.handleListReceipts)
			r.Post("/upload", s.handleUpload)
			r.Post("/text", s.handleText)
			r.Get("/store/{store}", s.handleListByStore)
			r.Get("/date-range", s.handleListByDateRange)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetReceipt)
				r.Put("/", s.handleUpdateReceipt)
				r.Delete("/", s.handleDeleteReceipt)
			})
		})
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/export.xlsx", s.handleExportXLSX)
	})

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	s.logger.Info("http.listen", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http.shutdown")
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		s.logger.Warn("http.health.db_unreachable", "error", err)
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			// downstream layers log under the same request id
			r = r.WithContext(common.WithRequestID(r.Context(), middleware.GetReqID(r.Context())))
			next.ServeHTTP(ww, r)
			logger.Info("http.request",
				"req_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
