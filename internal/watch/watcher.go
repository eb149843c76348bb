// Package watch ingests receipts dropped into a filesystem directory.
// Every recognized file is run through the extraction pipeline and
// persisted, then moved into a processed or failed subdirectory so a
// restart never reprocesses it.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"receiptd/constants"
	"receiptd/internal/artifact"
	"receiptd/internal/common"
	"receiptd/internal/document"
	"receiptd/internal/pipeline"
	"receiptd/internal/repository"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

type Watcher struct {
	cfg       common.WatchConfig
	pipeline  *pipeline.Service
	receipts  repository.ReceiptRepository
	artifacts *artifact.Store
	logger    *slog.Logger
}

func New(
	cfg common.WatchConfig,
	pl *pipeline.Service,
	receipts repository.ReceiptRepository,
	artifacts *artifact.Store,
	logger *slog.Logger,
) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		cfg:       cfg,
		pipeline:  pl,
		receipts:  receipts,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Run watches the drop directory until ctx is cancelled. Files already
// present are ingested first when InitialScan is set.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Dir == "" {
		return errors.New("watch directory not configured")
	}
	for _, sub := range []string{processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.cfg.Dir, sub), 0o755); err != nil {
			return err
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	var initial []string
	err = filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if w.isSink(path) {
				return fs.SkipDir
			}
			return fw.Add(path)
		}
		if w.cfg.InitialScan && recognized(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Info("watch.start", "dir", w.cfg.Dir, "initial", len(initial))
	for _, path := range initial {
		w.process(ctx, path)
	}

	// Debounce coalesces the create/write bursts editors and network
	// copies produce for a single file.
	var timer *time.Timer
	pending := map[string]struct{}{}
	due := make(chan struct{}, 1)
	flush := func() {
		select {
		case due <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(e.Name); err == nil && st.IsDir() && !w.isSink(e.Name) {
					if err := fw.Add(e.Name); err != nil {
						w.logger.Warn("watch.add_dir_failed", "path", e.Name, "error", err)
					}
				}
			}
			if recognized(e.Name) && !w.inSink(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending[e.Name] = struct{}{}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.cfg.Debounce, flush)
			}

		case <-due:
			for path := range pending {
				delete(pending, path)
				w.process(ctx, path)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch.error", "error", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// already moved or deleted between event and processing
		return
	}

	result, err := w.pipeline.ProcessDocument(ctx, document.RawDocument{
		Path: path,
		Name: filepath.Base(path),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("watch.extract_failed", "path", path, "error", err)
		w.move(path, failedDir)
		return
	}

	rec := result.Receipt
	rawName, err := w.artifacts.SaveRaw(result.Text.Text, sourceOf(path))
	if err != nil {
		w.logger.Warn("watch.raw_artifact_failed", "path", path, "error", err)
	}

	rec.ID = uuid.Nil
	if err := w.receipts.Create(ctx, &rec); err != nil {
		w.logger.Error("watch.persist_failed", "path", path, "error", err)
		w.move(path, failedDir)
		return
	}
	if _, err := w.artifacts.SaveCurated(rec, rec.ID, rawName); err != nil {
		w.logger.Warn("watch.curated_artifact_failed", "path", path, "error", err)
	}

	w.logger.Info("watch.ingested",
		"path", path,
		"receipt_id", rec.ID,
		"store", rec.StoreName,
		"path_taken", rec.ExtractionPath,
	)
	w.move(path, processedDir)
}

// move relocates a handled file into the named sink under the drop dir.
func (w *Watcher) move(path, sink string) {
	dst := filepath.Join(w.cfg.Dir, sink, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		w.logger.Warn("watch.move_failed", "path", path, "sink", sink, "error", err)
	}
}

func (w *Watcher) isSink(dir string) bool {
	base := filepath.Base(dir)
	return base == processedDir || base == failedDir
}

func (w *Watcher) inSink(path string) bool {
	return w.isSink(filepath.Dir(path))
}

func recognized(path string) bool {
	return constants.MapExtToFormat(filepath.Ext(path)) != ""
}

func sourceOf(path string) string {
	switch constants.MapExtToFormat(filepath.Ext(path)) {
	case constants.PDF:
		return "pdf"
	case constants.IMAGE:
		return "image"
	default:
		return "text"
	}
}
