package query

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/tameru/internal/cache"
	"github.com/hyperjump/tameru/internal/chunker"
	"github.com/hyperjump/tameru/internal/extract"
	"github.com/hyperjump/tameru/internal/models"
)

const proseDoc = `# Introduction

The cache stores extractions. The cache is content addressed.

# Operations

Search runs against the cache. Headings are matched by suffix.

# Maintenance

Force re-extraction replaces an entry.
`

// extractProse caches the sample prose document and returns its key and root.
func extractProse(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(src, []byte(proseDoc), 0644); err != nil {
		t.Fatal(err)
	}
	m := cache.NewManager(root, extract.NewExtractor(), chunker.NewChunker(0, 0))
	key, err := m.Extract(src, cache.ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return key, root
}

// extractSheet caches a generated workbook with tight chunk bounds so the
// sheet splits into row ranges.
func extractSheet(t *testing.T, rows int) (string, string) {
	t.Helper()
	f := excelize.NewFile()
	header := []interface{}{"id", "name", "amount"}
	_ = f.SetSheetRow("Sheet1", "A1", &header)
	for r := 0; r < rows; r++ {
		row := []interface{}{r + 1, fmt.Sprintf("item_%d", r+1), (r + 1) * 3}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		_ = f.SetSheetRow("Sheet1", cell, &row)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	src := filepath.Join(t.TempDir(), "ledger.xlsx")
	if err := os.WriteFile(src, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	m := cache.NewManager(root, extract.NewExtractor(), chunker.NewChunker(1, 40))
	key, err := m.Extract(src, cache.ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return key, root
}

func TestSearch_scoringAndOrder(t *testing.T) {
	key, root := extractProse(t)
	e := NewEngine(root)

	results, err := e.Search(key, "cache")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// "cache" appears twice in Introduction, once in Operations.
	first := results[0]
	if first.MatchCount != 2 || first.Score != 20 {
		t.Errorf("top result = %+v, want 2 matches score 20", first)
	}
	if results[1].Score > first.Score {
		t.Error("results not sorted by descending score")
	}
	if first.Snippet == "" {
		t.Error("expected a snippet around the first match")
	}
}

func TestSearch_caseInsensitive(t *testing.T) {
	key, root := extractProse(t)
	e := NewEngine(root)

	results, err := e.Search(key, "CACHE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearch_scoreCap(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "rep.txt")
	content := ""
	for i := 0; i < 30; i++ {
		content += "needle "
	}
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	m := cache.NewManager(root, extract.NewExtractor(), chunker.NewChunker(0, 0))
	key, err := m.Extract(src, cache.ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	results, err := NewEngine(root).Search(key, "needle")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].MatchCount != 30 || results[0].Score != 100 {
		t.Errorf("result = %+v, want 30 matches capped at score 100", results[0])
	}
}

func TestSearch_zeroMatchesIsEmptyNotError(t *testing.T) {
	key, root := extractProse(t)
	results, err := NewEngine(root).Search(key, "zebra")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_unknownKey(t *testing.T) {
	_, err := NewEngine(t.TempDir()).Search("feedface", "term")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestHeading_suffixMatch(t *testing.T) {
	key, root := extractProse(t)
	e := NewEngine(root)

	body, ref, err := e.Heading(key, "operations")
	if err != nil {
		t.Fatalf("Heading: %v", err)
	}
	path := ref.Boundary.HeadingPath
	if len(path) == 0 || path[len(path)-1] != "Operations" {
		t.Errorf("boundary = %v, want path ending in Operations", path)
	}
	if body.Content == "" {
		t.Error("heading chunk has no content")
	}
}

func TestHeading_notFoundListsAvailable(t *testing.T) {
	key, root := extractProse(t)
	_, _, err := NewEngine(root).Heading(key, "Nonexistent Section")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	var hnf *models.HeadingNotFoundError
	if !errors.As(err, &hnf) {
		t.Fatalf("got %T, want HeadingNotFoundError", err)
	}
	want := []string{"Introduction", "Operations", "Maintenance"}
	if len(hnf.Available) != len(want) {
		t.Fatalf("available = %v, want %v", hnf.Available, want)
	}
	for i := range want {
		if hnf.Available[i] != want[i] {
			t.Errorf("available[%d] = %q, want %q", i, hnf.Available[i], want[i])
		}
	}
}

func TestUnit_wholeSheet(t *testing.T) {
	key, root := extractSheet(t, 60)
	bodies, refs, err := NewEngine(root).Unit(key, "Sheet1")
	if err != nil {
		t.Fatalf("Unit: %v", err)
	}
	if len(bodies) < 2 {
		t.Fatalf("got %d chunks, want several row ranges", len(bodies))
	}
	for i, ref := range refs {
		if ref.Type != models.ChunkRowRange {
			t.Errorf("chunk %d type = %s, want row-range", i, ref.Type)
		}
	}
}

func TestUnit_rowRange(t *testing.T) {
	key, root := extractSheet(t, 60)
	e := NewEngine(root)

	all, _, err := e.Unit(key, "Sheet1")
	if err != nil {
		t.Fatalf("Unit all: %v", err)
	}
	some, refs, err := e.Unit(key, "Sheet1!1-5")
	if err != nil {
		t.Fatalf("Unit range: %v", err)
	}
	if len(some) >= len(all) {
		t.Errorf("range query returned %d chunks, full sheet %d", len(some), len(all))
	}
	for _, ref := range refs {
		if ref.Boundary.StartRow > 5 {
			t.Errorf("chunk rows %d-%d outside requested range", ref.Boundary.StartRow, ref.Boundary.EndRow)
		}
	}
}

func TestUnit_notFoundListsSheets(t *testing.T) {
	key, root := extractSheet(t, 10)
	_, _, err := NewEngine(root).Unit(key, "Budget")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	var unf *models.UnitNotFoundError
	if !errors.As(err, &unf) {
		t.Fatalf("got %T, want UnitNotFoundError", err)
	}
	if len(unf.Available) != 1 || unf.Available[0] != "Sheet1" {
		t.Errorf("available = %v, want [Sheet1]", unf.Available)
	}
}

func TestSummary_aggregatesWithoutBodies(t *testing.T) {
	key, root := extractProse(t)
	s, err := NewEngine(root).Summary(key)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Key != key || s.Format != "text" {
		t.Errorf("summary = %+v", s)
	}
	if s.Headings != 3 {
		t.Errorf("headings = %d, want 3", s.Headings)
	}
	if s.Chunks == 0 || s.TotalTokens == 0 {
		t.Errorf("summary missing chunk aggregates: %+v", s)
	}
	if s.PreservationRatio < 0.99 {
		t.Errorf("preservation ratio = %.4f, want >= 0.99", s.PreservationRatio)
	}
}

func TestSearch_missingChunkBodyIsCacheCorrupt(t *testing.T) {
	key, root := extractProse(t)
	dir, err := cache.Find(root, key)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	index, err := cache.ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, cache.ChunksDir, index.Chunks[0].File)); err != nil {
		t.Fatalf("remove chunk body: %v", err)
	}

	_, err = NewEngine(root).Search(key, "cache")
	if !errors.Is(err, models.ErrCacheCorrupt) {
		t.Errorf("got %v, want ErrCacheCorrupt", err)
	}
}
