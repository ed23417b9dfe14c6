package models

import "time"

// SearchResult is a single search hit against one chunk.
type SearchResult struct {
	ChunkID    int       `json:"chunk_id"`
	Type       ChunkType `json:"type"`
	Boundary   Boundary  `json:"boundary"`
	MatchCount int       `json:"match_count"`
	// Score is min(100, MatchCount*10).
	Score   int    `json:"score"`
	Snippet string `json:"snippet,omitempty"`
}

// Summary aggregates cache-entry and chunk-index metadata for one key.
// Built without loading any chunk body.
type Summary struct {
	Key            string    `json:"key"`
	OriginalName   string    `json:"original_name"`
	Format         string    `json:"format"`
	SizeBytes      int64     `json:"size_bytes"`
	ExtractedAt    time.Time `json:"extracted_at"`
	ChunkerVersion string    `json:"chunker_version"`
	MigratedFrom   string    `json:"migrated_from,omitempty"`

	Units      int `json:"units"`
	Headings   int `json:"headings"`
	Tables     int `json:"tables"`
	Characters int `json:"characters"`

	Chunks      int `json:"chunks"`
	TotalTokens int `json:"total_tokens"`
	// PreservationRatio is the fraction of the extracted content's
	// whitespace-normalized characters represented across all chunks.
	PreservationRatio float64 `json:"preservation_ratio"`
}
