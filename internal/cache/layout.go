// Package cache owns the on-disk extraction cache: directory layout,
// idempotent extraction, legacy-key migration, and atomic publication.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tameru/internal/models"
)

// File and directory names inside one cache entry.
const (
	ManifestFile = "manifest.json"
	ChunksDir    = "chunks"
	IndexFile    = "index.json"
)

// maxSanitizedName caps the human-readable prefix of an entry directory.
const maxSanitizedName = 48

// SanitizeName reduces an original filename to a filesystem-safe directory
// prefix: extension dropped, non-alphanumerics collapsed to single
// underscores, lowercased, length-capped. The cache key, not this prefix,
// identifies the entry.
func SanitizeName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "document"
	}
	if len(out) > maxSanitizedName {
		out = out[:maxSanitizedName]
	}
	return out
}

// EntryDirName returns the directory name for a cache entry.
func EntryDirName(originalName, key string) string {
	return SanitizeName(originalName) + "_" + key
}

// Find locates the cache entry directory for key under root, across all
// format subdirectories. Returns ErrNotFound when no entry exists.
func Find(root, key string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", "*_"+key))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr == nil && info.IsDir() {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: no cache entry for key %s (run extract first)", models.ErrNotFound, key)
}

// ReadManifest loads the manifest of the entry at dir. A missing or
// unparsable manifest is reported as CacheCorrupt.
func ReadManifest(dir string) (*models.Manifest, error) {
	var m models.Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, ManifestFile, err)
	}
	return &m, nil
}

// ReadIndex loads the chunk index of the entry at dir.
func ReadIndex(dir string) (*models.ChunkIndex, error) {
	var idx models.ChunkIndex
	if err := readJSON(filepath.Join(dir, ChunksDir, IndexFile), &idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCacheCorrupt, IndexFile, err)
	}
	return &idx, nil
}

// ReadChunkBody loads one chunk body referenced by the index. A referenced
// but missing body means the entry is corrupt.
func ReadChunkBody(dir string, ref *models.ChunkRef) (*models.ChunkBody, error) {
	var body models.ChunkBody
	if err := readJSON(filepath.Join(dir, ChunksDir, ref.File), &body); err != nil {
		return nil, fmt.Errorf("%w: chunk %d body %s: %v", models.ErrCacheCorrupt, ref.ID, ref.File, err)
	}
	return &body, nil
}
