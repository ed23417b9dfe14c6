// Package extract parses source documents into format-agnostic structured content.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tameru/internal/models"
)

// Options carries per-extraction parameters for protected sources.
type Options struct {
	// Password unlocks encrypted PDF and XLSX sources.
	Password string
}

// Extractor parses document files into StructuredContent.
// It implements the extraction backend consumed by the cache layer:
// per-format parsing lives here, everything downstream sees only typed
// structural units.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Format returns the cache format identifier for path based on its extension.
// Unknown extensions are treated as plain text.
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".xlsx":
		return "xlsx"
	default:
		return "text"
	}
}

// Parse reads the file at path and returns its structured content.
// Returns SourceNotFound/SourceUnreadable for read failures and
// CredentialsRequired/InvalidCredentials for encrypted sources.
func (e *Extractor) Parse(path string, opts Options) (*models.StructuredContent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, path, err)
	}
	return e.ParseBytes(content, Format(path), opts)
}

// ParseBytes parses already-read content for the given format identifier.
func (e *Extractor) ParseBytes(content []byte, format string, opts Options) (*models.StructuredContent, error) {
	switch format {
	case "pdf":
		return parsePDF(content, opts)
	case "docx":
		return parseDOCX(content)
	case "xlsx":
		return parseXLSX(content, opts)
	default:
		return parseText(content)
	}
}

// headingTracker maintains the ancestor heading path while units are emitted
// in document order.
type headingTracker struct {
	path   []string
	levels []int
}

// enter records a heading of the given level and returns the heading path
// including the heading itself.
func (h *headingTracker) enter(level int, text string) []string {
	for len(h.levels) > 0 && h.levels[len(h.levels)-1] >= level {
		h.levels = h.levels[:len(h.levels)-1]
		h.path = h.path[:len(h.path)-1]
	}
	h.levels = append(h.levels, level)
	h.path = append(h.path, text)
	return h.current()
}

// current returns a copy of the current heading path.
func (h *headingTracker) current() []string {
	if len(h.path) == 0 {
		return nil
	}
	out := make([]string, len(h.path))
	copy(out, h.path)
	return out
}
