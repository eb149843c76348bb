// Package artifact archives raw extraction inputs and curated outputs as
// timestamped JSON files under the data directory, keeping an audit trail
// alongside the database.
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/entity"
)

type Store struct {
	rawDir     string
	curatedDir string
	logger     *slog.Logger
}

type rawEnvelope struct {
	Timestamp  string `json:"timestamp"`
	SourceType string `json:"source_type"`
	RawContent string `json:"raw_content"`
	Filename   string `json:"filename"`
}

type curatedEnvelope struct {
	Timestamp      string         `json:"timestamp"`
	ReceiptID      string         `json:"receipt_id"`
	RawFilename    string         `json:"raw_filename"`
	StructuredData entity.Receipt `json:"structured_data"`
	Filename       string         `json:"filename"`
	Status         string         `json:"status"`
}

// NewStore creates the raw_data and curated_data directories under dir.
func NewStore(cfg common.ArtifactConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "data"
	}
	s := &Store{
		rawDir:     filepath.Join(dir, "raw_data"),
		curatedDir: filepath.Join(dir, "curated_data"),
		logger:     logger,
	}
	for _, d := range []string{s.rawDir, s.curatedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", d, err)
		}
	}
	return s, nil
}

// SaveRaw archives extracted text before structuring. sourceType is
// "text", "image" or "pdf". Returns the artifact filename.
func (s *Store) SaveRaw(content, sourceType string) (string, error) {
	now := time.Now()
	filename := fmt.Sprintf("raw_%s_%s.json", sourceType, stamp(now))
	env := rawEnvelope{
		Timestamp:  now.Format(time.RFC3339),
		SourceType: sourceType,
		RawContent: content,
		Filename:   filename,
	}
	if err := s.write(filepath.Join(s.rawDir, filename), env); err != nil {
		return "", err
	}
	s.logger.Debug("artifact.raw.saved", "filename", filename, "bytes", len(content))
	return filename, nil
}

// SaveCurated archives the persisted receipt, linked back to its raw
// artifact. Returns the artifact filename.
func (s *Store) SaveCurated(rec entity.Receipt, id uuid.UUID, rawFilename string) (string, error) {
	now := time.Now()
	filename := fmt.Sprintf("curated_%s_%s.json", id.String(), stamp(now))
	env := curatedEnvelope{
		Timestamp:      now.Format(time.RFC3339),
		ReceiptID:      id.String(),
		RawFilename:    rawFilename,
		StructuredData: rec,
		Filename:       filename,
		Status:         "success",
	}
	if err := s.write(filepath.Join(s.curatedDir, filename), env); err != nil {
		return "", err
	}
	s.logger.Debug("artifact.curated.saved", "filename", filename, "receipt_id", id)
	return filename, nil
}

func (s *Store) write(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func stamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format("20060102_150405"), t.Nanosecond()/1e6)
}
