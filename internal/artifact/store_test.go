package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/entity"
)

func TestSaveRaw(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(common.ArtifactConfig{Dir: dir}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	name, err := store.SaveRaw("COSTCO\nTOTAL 4.50", "text")
	if err != nil {
		t.Fatalf("save raw: %v", err)
	}
	if !strings.HasPrefix(name, "raw_text_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("filename = %q", name)
	}

	b, err := os.ReadFile(filepath.Join(dir, "raw_data", name))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var env struct {
		Timestamp  string `json:"timestamp"`
		SourceType string `json:"source_type"`
		RawContent string `json:"raw_content"`
		Filename   string `json:"filename"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if env.SourceType != "text" || env.RawContent != "COSTCO\nTOTAL 4.50" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Filename != name || env.Timestamp == "" {
		t.Errorf("envelope metadata = %+v", env)
	}
}

func TestSaveCurated(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(common.ArtifactConfig{Dir: dir}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	id := uuid.New()
	total := 4.86
	rec := entity.Receipt{
		ID:        id,
		StoreName: "COSTCO",
		Total:     &total,
		Items:     []entity.Item{{ItemName: "SOCKS", ItemPrice: 4.50}},
	}

	name, err := store.SaveCurated(rec, id, "raw_text_20260815_143200_001.json")
	if err != nil {
		t.Fatalf("save curated: %v", err)
	}
	if !strings.HasPrefix(name, "curated_"+id.String()+"_") {
		t.Errorf("filename = %q", name)
	}

	b, err := os.ReadFile(filepath.Join(dir, "curated_data", name))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var env struct {
		ReceiptID      string         `json:"receipt_id"`
		RawFilename    string         `json:"raw_filename"`
		StructuredData entity.Receipt `json:"structured_data"`
		Status         string         `json:"status"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if env.ReceiptID != id.String() || env.Status != "success" {
		t.Errorf("envelope = %+v", env)
	}
	if env.StructuredData.StoreName != "COSTCO" || len(env.StructuredData.Items) != 1 {
		t.Errorf("structured data = %+v", env.StructuredData)
	}
	if env.RawFilename != "raw_text_20260815_143200_001.json" {
		t.Errorf("raw link = %q", env.RawFilename)
	}
}

func TestNewStoreCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewStore(common.ArtifactConfig{Dir: dir}, nil); err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, sub := range []string{"raw_data", "curated_data"} {
		if st, err := os.Stat(filepath.Join(dir, sub)); err != nil || !st.IsDir() {
			t.Errorf("%s not created: %v", sub, err)
		}
	}
}
