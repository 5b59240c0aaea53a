package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-1688/models"
)

// History is a capped JSON log of recent scrape and upload attempts, newest
// first.
type History struct {
	path  string
	limit int
	now   func() time.Time

	mu sync.Mutex
}

// NewHistory opens the log at path keeping at most limit entries.
func NewHistory(path string, limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{path: path, limit: limit, now: time.Now}
}

// Add prepends rec, filling in the id and timestamp when missing.
func (h *History) Add(rec models.HistoryRecord) (models.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = h.now().Format(time.RFC3339)
	}

	records, err := h.load()
	if err != nil {
		return rec, err
	}
	records = append([]models.HistoryRecord{rec}, records...)
	if len(records) > h.limit {
		records = records[:h.limit]
	}
	return rec, h.save(records)
}

// Load returns the stored entries, newest first. A missing file is empty.
func (h *History) Load() ([]models.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

// Clear removes every entry.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.save([]models.HistoryRecord{})
}

func (h *History) load() ([]models.HistoryRecord, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.HistoryRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(data) == 0 {
		return []models.HistoryRecord{}, nil
	}

	var records []models.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

// save writes to a temporary file and renames it over the log.
func (h *History) save(records []models.HistoryRecord) error {
	if err := ensureDir(h.path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.path), filepath.Base(h.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create history temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
