// Package query provides read-only operations over an existing extraction cache.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tameru/internal/cache"
	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/internal/store"
	"github.com/hyperjump/tameru/pkg/utils"
)

// snippetRadius is the number of characters shown around the first match.
const snippetRadius = 60

// Engine answers search, heading, unit, and summary queries against cached
// extractions. All operations are pure reads: the chunk index is loaded
// first and bodies only as needed, which is what keeps repeated querying
// cheap. No operation ever mutates a cache entry.
type Engine struct {
	root   string
	logger *zap.Logger // optional; when set, logs debug events
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine over the cache root.
func NewEngine(root string, opts ...Option) *Engine {
	e := &Engine{root: root}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search scans chunk bodies for case-insensitive occurrences of term.
// Results are sorted by descending relevance (min(100, matches*10)), then
// descending match count, then ascending chunk id. Zero matches yields an
// empty slice, not an error.
func (e *Engine) Search(key, term string) ([]models.SearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("search term cannot be empty")
	}
	dir, err := cache.Find(e.root, key)
	if err != nil {
		return nil, err
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	var results []models.SearchResult
	for i := range index.Chunks {
		ref := &index.Chunks[i]
		body, err := cache.ReadChunkBody(dir, ref)
		if err != nil {
			return nil, err
		}
		haystack := strings.ToLower(body.Content)
		count := strings.Count(haystack, needle)
		if count == 0 {
			continue
		}
		score := count * 10
		if score > 100 {
			score = 100
		}
		results = append(results, models.SearchResult{
			ChunkID:    ref.ID,
			Type:       ref.Type,
			Boundary:   ref.Boundary,
			MatchCount: count,
			Score:      score,
			Snippet:    snippet(body.Content, strings.Index(haystack, needle), len(needle)),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].MatchCount != results[j].MatchCount {
			return results[i].MatchCount > results[j].MatchCount
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if e.logger != nil {
		e.logger.Debug("search completed",
			zap.String("key", key),
			zap.String("term", term),
			zap.Int("hits", len(results)),
		)
	}
	return results, nil
}

// Heading returns the first chunk in document order whose heading path ends
// with name (case-insensitive substring match on the last path element).
// A miss returns a HeadingNotFoundError listing the real top-level headings.
func (e *Engine) Heading(key, name string) (*models.ChunkBody, *models.ChunkRef, error) {
	dir, err := cache.Find(e.root, key)
	if err != nil {
		return nil, nil, err
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		return nil, nil, err
	}

	needle := strings.ToLower(name)
	for i := range index.Chunks {
		ref := &index.Chunks[i]
		path := ref.Boundary.HeadingPath
		if len(path) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(path[len(path)-1]), needle) {
			body, err := cache.ReadChunkBody(dir, ref)
			if err != nil {
				return nil, nil, err
			}
			return body, ref, nil
		}
	}
	return nil, nil, &models.HeadingNotFoundError{Name: name, Available: topLevelHeadings(index)}
}

// Unit returns all chunks whose boundary falls inside the requested
// structural unit: a sheet name, optionally restricted to a row range with
// the "sheet!start-end" form.
func (e *Engine) Unit(key, unitID string) ([]models.ChunkBody, []models.ChunkRef, error) {
	dir, err := cache.Find(e.root, key)
	if err != nil {
		return nil, nil, err
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		return nil, nil, err
	}

	sheet, startRow, endRow, err := parseUnitID(unitID)
	if err != nil {
		return nil, nil, err
	}
	var bodies []models.ChunkBody
	var refs []models.ChunkRef
	for i := range index.Chunks {
		ref := &index.Chunks[i]
		if !strings.EqualFold(ref.Boundary.Sheet, sheet) {
			continue
		}
		if startRow > 0 && ref.Type == models.ChunkRowRange {
			if ref.Boundary.EndRow < startRow || ref.Boundary.StartRow > endRow {
				continue
			}
		}
		body, err := cache.ReadChunkBody(dir, ref)
		if err != nil {
			return nil, nil, err
		}
		bodies = append(bodies, *body)
		refs = append(refs, *ref)
	}
	if len(bodies) == 0 {
		return nil, nil, &models.UnitNotFoundError{UnitID: unitID, Available: sheets(index)}
	}
	return bodies, refs, nil
}

// Summary aggregates manifest, content stats, and chunk index metadata for
// one key without loading any chunk body.
func (e *Engine) Summary(key string) (*models.Summary, error) {
	dir, err := cache.Find(e.root, key)
	if err != nil {
		return nil, err
	}
	manifest, err := cache.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	stats, err := store.ReadStats(dir)
	if err != nil {
		return nil, err
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		return nil, err
	}

	s := &models.Summary{
		Key:            manifest.Key,
		OriginalName:   manifest.OriginalName,
		Format:         manifest.Format,
		SizeBytes:      manifest.SizeBytes,
		ExtractedAt:    manifest.ExtractedAt,
		ChunkerVersion: manifest.ChunkerVersion,
		MigratedFrom:   manifest.MigratedFrom,
		Units:          stats.Units,
		Headings:       stats.Headings,
		Tables:         stats.Tables,
		Characters:     stats.Characters,
		Chunks:         len(index.Chunks),
		TotalTokens:    index.TotalTokens,
	}
	if stats.Characters > 0 {
		s.PreservationRatio = float64(index.TotalChars) / float64(stats.Characters)
	} else {
		s.PreservationRatio = 1
	}
	return s, nil
}

// parseUnitID splits "sheet" or "sheet!start-end" into its parts.
func parseUnitID(unitID string) (sheet string, startRow, endRow int, err error) {
	sheet = unitID
	bang := strings.LastIndex(unitID, "!")
	if bang < 0 {
		return sheet, 0, 0, nil
	}
	sheet = unitID[:bang]
	rangePart := unitID[bang+1:]
	dash := strings.Index(rangePart, "-")
	if dash < 0 {
		return "", 0, 0, fmt.Errorf("invalid unit range %q: want sheet!start-end", unitID)
	}
	startRow, err = strconv.Atoi(rangePart[:dash])
	if err == nil {
		endRow, err = strconv.Atoi(rangePart[dash+1:])
	}
	if err != nil || startRow < 1 || endRow < startRow {
		return "", 0, 0, fmt.Errorf("invalid unit range %q: want sheet!start-end", unitID)
	}
	return sheet, startRow, endRow, nil
}

// topLevelHeadings lists the distinct first path elements across all chunks,
// in document order.
func topLevelHeadings(index *models.ChunkIndex) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range index.Chunks {
		path := index.Chunks[i].Boundary.HeadingPath
		if len(path) == 0 || seen[path[0]] {
			continue
		}
		seen[path[0]] = true
		out = append(out, path[0])
	}
	return out
}

// sheets lists the distinct sheet names across all chunks, in document order.
func sheets(index *models.ChunkIndex) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range index.Chunks {
		s := index.Chunks[i].Boundary.Sheet
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// snippet returns the text around the first match, whitespace-normalized.
func snippet(content string, pos, matchLen int) string {
	if pos < 0 {
		return ""
	}
	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	end := pos + matchLen + snippetRadius
	if end > len(content) {
		end = len(content)
	}
	out := utils.NormalizeWhitespace(content[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
