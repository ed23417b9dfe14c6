// Package cli provides CLI output formatting for tameru.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/internal/registry"
	"github.com/hyperjump/tameru/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, term string, results []models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []models.SearchResult{}
		}
		return writeJSON(w, map[string]interface{}{"term": term, "results": results})
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No matches for %q\n", term)
		return nil
	}
	fmt.Fprintf(w, "%d chunk(s) match %q\n\n", len(results), term)
	for _, r := range results {
		fmt.Fprintf(w, "chunk %d  score %d  (%d match(es), %s)\n", r.ChunkID, r.Score, r.MatchCount, r.Type)
		if loc := describeBoundary(&r.Boundary); loc != "" {
			fmt.Fprintf(w, "  at %s\n", loc)
		}
		if r.Snippet != "" {
			fmt.Fprintf(w, "  %s\n", utils.Truncate(r.Snippet, 160))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteSummary writes a cache entry summary to w in the given format.
func WriteSummary(w io.Writer, s *models.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "key:             %s\n", s.Key)
	fmt.Fprintf(w, "name:            %s\n", s.OriginalName)
	fmt.Fprintf(w, "format:          %s\n", s.Format)
	fmt.Fprintf(w, "size_bytes:      %d\n", s.SizeBytes)
	fmt.Fprintf(w, "extracted_at:    %s\n", s.ExtractedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "chunker_version: %s\n", s.ChunkerVersion)
	if s.MigratedFrom != "" {
		fmt.Fprintf(w, "migrated_from:   %s\n", s.MigratedFrom)
	}
	fmt.Fprintf(w, "units:           %d (%d headings, %d tables)\n", s.Units, s.Headings, s.Tables)
	fmt.Fprintf(w, "chunks:          %d (~%d tokens)\n", s.Chunks, s.TotalTokens)
	fmt.Fprintf(w, "preservation:    %.2f%%\n", s.PreservationRatio*100)
	return nil
}

// WriteChunk writes a single chunk with its metadata and content.
func WriteChunk(w io.Writer, ref *models.ChunkRef, body *models.ChunkBody, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"chunk": ref, "body": body})
	}
	fmt.Fprintf(w, "chunk %d  (%s, ~%d tokens)\n", ref.ID, ref.Type, ref.TokenEstimate)
	if loc := describeBoundary(&ref.Boundary); loc != "" {
		fmt.Fprintf(w, "at %s\n", loc)
	}
	if body.Context != "" {
		fmt.Fprintf(w, "context: %s\n", body.Context)
	}
	fmt.Fprintf(w, "\n%s\n", body.Content)
	return nil
}

// WriteChunks writes several chunks in sequence, separated by rules.
func WriteChunks(w io.Writer, refs []models.ChunkRef, bodies []models.ChunkBody, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"chunks": refs, "bodies": bodies})
	}
	for i := range refs {
		if i > 0 {
			fmt.Fprintln(w, strings.Repeat("-", 57))
		}
		if err := WriteChunk(w, &refs[i], &bodies[i], format); err != nil {
			return err
		}
	}
	return nil
}

// WriteCacheList writes registry entries to w in the given format.
func WriteCacheList(w io.Writer, entries []*registry.Entry, format OutputFormat) error {
	if format == OutputJSON {
		if entries == nil {
			entries = []*registry.Entry{}
		}
		return writeJSON(w, map[string]interface{}{"count": len(entries), "entries": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached extractions.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-6s %6d chunk(s)  %s\n", e.Key, e.Format, e.Chunks, e.OriginalName)
	}
	return nil
}

// describeBoundary renders a chunk boundary as a short location string.
func describeBoundary(b *models.Boundary) string {
	if b.Sheet != "" {
		switch {
		case b.StartRow > 0:
			return fmt.Sprintf("%s rows %d-%d", b.Sheet, b.StartRow, b.EndRow)
		case b.StartCol > 0:
			return fmt.Sprintf("%s columns %d-%d", b.Sheet, b.StartCol, b.EndCol)
		default:
			return b.Sheet
		}
	}
	if len(b.HeadingPath) > 0 {
		return strings.Join(b.HeadingPath, " > ")
	}
	return ""
}
