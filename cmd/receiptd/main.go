// receiptd is the receipt extraction daemon: it serves the HTTP API,
// owns the database, and runs the document-to-receipt pipeline.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"receiptd/internal/artifact"
	"receiptd/internal/common"
	"receiptd/internal/document"
	"receiptd/internal/export"
	"receiptd/internal/pipeline"
	"receiptd/internal/repository"
	"receiptd/internal/rules"
	"receiptd/internal/server"
	"receiptd/internal/watch"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("startup.db_open_failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("startup.migrate_failed", "error", err)
		os.Exit(1)
	}

	artifacts, err := artifact.NewStore(cfg.Artifacts, logger)
	if err != nil {
		logger.Error("startup.artifact_store_failed", "error", err)
		os.Exit(1)
	}

	ai, err := pipeline.NewExtractorFromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("startup.llm_client_failed", "error", err)
		os.Exit(1)
	}

	adapter := document.NewAdapter(cfg.OCR, logger)
	orch := pipeline.NewOrchestrator(ai, rules.NewExtractor(logger), logger)
	pl := pipeline.NewService(adapter, orch, logger)

	receipts := repository.NewReceiptRepository(db, logger)
	analytics := repository.NewAnalyticsRepository(db, logger)
	exporter := export.NewService(receipts, logger)

	srv := server.New(cfg.Server, pl, receipts, analytics, exporter, artifacts, db, logger)

	if cfg.Watch.Dir != "" {
		watcher := watch.New(cfg.Watch, pl, receipts, artifacts, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("watch.stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http.serve_failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http.shutdown_failed", "error", err)
		}
	}
	logger.Info("stopped")
}
