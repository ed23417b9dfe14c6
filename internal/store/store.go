// Package store persists StructuredContent inside a cache entry directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/pkg/utils"
)

// ContentFile is the canonical structured-content file name inside a cache entry.
const ContentFile = "content.json"

// StatsFile is the content metadata file name inside a cache entry.
const StatsFile = "stats.json"

// Stats summarizes a stored extraction without re-reading the units.
// Characters counts whitespace-normalized text across all units.
type Stats struct {
	Units      int `json:"units"`
	Headings   int `json:"headings"`
	Tables     int `json:"tables"`
	Characters int `json:"characters"`
}

// ComputeStats derives Stats from content.
func ComputeStats(content *models.StructuredContent) Stats {
	s := Stats{
		Units:    len(content.Units),
		Headings: content.CountHeadings(),
		Tables:   content.CountTables(),
	}
	for i := range content.Units {
		s.Characters += utils.NormalizedLen(content.Units[i].PlainText())
	}
	return s
}

// Write serializes content and its stats into dir. The caller is responsible
// for dir being a not-yet-published temporary directory; Write itself is not
// atomic.
func Write(dir string, content *models.StructuredContent) error {
	if err := writeJSON(filepath.Join(dir, ContentFile), content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	stats := ComputeStats(content)
	if err := writeJSON(filepath.Join(dir, StatsFile), &stats); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

// Read loads the structured content from dir. A missing or unparsable file
// is reported as CacheCorrupt.
func Read(dir string) (*models.StructuredContent, error) {
	var content models.StructuredContent
	if err := readJSON(filepath.Join(dir, ContentFile), &content); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, ContentFile, err)
	}
	return &content, nil
}

// ReadStats loads the content stats from dir.
func ReadStats(dir string) (*Stats, error) {
	var stats Stats
	if err := readJSON(filepath.Join(dir, StatsFile), &stats); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, StatsFile, err)
	}
	return &stats, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
