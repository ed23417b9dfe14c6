package models

import "time"

// Manifest is the cache-entry metadata record (manifest.json). It is written
// once per extraction and only ever replaced wholesale, never edited in place.
type Manifest struct {
	Key           string    `json:"key"`
	OriginalName  string    `json:"original_name"`
	Hash          string    `json:"hash"`
	HashAlgorithm string    `json:"hash_algorithm"`
	SizeBytes     int64     `json:"size_bytes"`
	ExtractedAt   time.Time `json:"extracted_at"`
	Format        string    `json:"format"`
	ChunkerVersion string   `json:"chunker_version"`
	// MigratedFrom records the legacy cache key this entry was migrated
	// from, when the entry was relocated rather than re-extracted.
	MigratedFrom string `json:"migrated_from,omitempty"`
}
