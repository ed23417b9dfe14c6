package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tameru/internal/cachekey"
	"github.com/hyperjump/tameru/internal/chunker"
	"github.com/hyperjump/tameru/internal/extract"
	"github.com/hyperjump/tameru/internal/models"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root, extract.NewExtractor(), chunker.NewChunker(0, 0))
	return m, root
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

const sampleMarkdown = `# Overview

This document describes the system.

# Details

It has details.

# Appendix

And an appendix.
`

func TestExtract_createsCompleteEntry(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "notes.md", sampleMarkdown)

	key, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	dir, err := Find(root, key)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if filepath.Base(filepath.Dir(dir)) != "text" {
		t.Errorf("entry not under format dir: %s", dir)
	}

	manifest, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Key != key || manifest.OriginalName != "notes.md" {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.HashAlgorithm != cachekey.Algorithm {
		t.Errorf("hash algorithm = %q, want %q", manifest.HashAlgorithm, cachekey.Algorithm)
	}

	index, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(index.Chunks) == 0 {
		t.Fatal("index has no chunks")
	}
	for i := range index.Chunks {
		if _, err := ReadChunkBody(dir, &index.Chunks[i]); err != nil {
			t.Errorf("chunk %d body unreadable: %v", i, err)
		}
	}
}

func TestExtract_idempotent(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "notes.md", sampleMarkdown)

	key1, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	dir, _ := Find(root, key1)
	before, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	key2, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if key1 != key2 {
		t.Errorf("keys differ: %q vs %q", key1, key2)
	}
	after, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest after: %v", err)
	}
	if !before.ExtractedAt.Equal(after.ExtractedAt) {
		t.Error("second extract without force must not touch the manifest")
	}
}

func TestExtract_forceReplacesEntry(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "notes.md", sampleMarkdown)

	key, _ := m.Extract(src, ExtractOptions{})
	dir, _ := Find(root, key)
	before, _ := ReadManifest(dir)

	time.Sleep(10 * time.Millisecond)
	if _, err := m.Extract(src, ExtractOptions{Force: true}); err != nil {
		t.Fatalf("forced Extract: %v", err)
	}
	after, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest after force: %v", err)
	}
	if !after.ExtractedAt.After(before.ExtractedAt) {
		t.Error("force must replace the entry wholesale")
	}
}

func TestExtract_renamedFileHitsSameEntry(t *testing.T) {
	m, _ := newManager(t)
	dir := t.TempDir()
	p1 := filepath.Join(dir, "original.md")
	p2 := filepath.Join(dir, "renamed.md")
	if err := os.WriteFile(p1, []byte(sampleMarkdown), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p2, []byte(sampleMarkdown), 0644); err != nil {
		t.Fatal(err)
	}

	k1, err := m.Extract(p1, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract p1: %v", err)
	}
	k2, err := m.Extract(p2, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract p2: %v", err)
	}
	if k1 != k2 {
		t.Errorf("same content should share one entry: %q vs %q", k1, k2)
	}
}

func TestExtract_parserFailureLeavesNoPartialCache(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "broken.docx", "this is not a zip archive")

	_, err := m.Extract(src, ExtractOptions{})
	if !errors.Is(err, models.ErrSourceUnreadable) {
		t.Fatalf("got %v, want ErrSourceUnreadable", err)
	}
	entries, _ := filepath.Glob(filepath.Join(root, "*", "*"))
	for _, e := range entries {
		if !strings.Contains(e, ".locks") {
			t.Errorf("unexpected cache artifact after parse failure: %s", e)
		}
	}
}

func TestExtract_migratesLegacyEntry(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "notes.md", sampleMarkdown)

	key, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	newDir, _ := Find(root, key)
	wantIndex, _ := ReadIndex(newDir)

	// Rewind the clock: move the entry to its legacy-keyed location.
	legacyKey, err := cachekey.DeriveLegacy(src)
	if err != nil {
		t.Fatalf("DeriveLegacy: %v", err)
	}
	legacyDir := filepath.Join(filepath.Dir(newDir), EntryDirName("notes.md", legacyKey))
	if err := os.Rename(newDir, legacyDir); err != nil {
		t.Fatalf("stage legacy dir: %v", err)
	}

	key2, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract after staging legacy: %v", err)
	}
	if key2 != key {
		t.Errorf("migrated key = %q, want %q", key2, key)
	}
	migratedDir, err := Find(root, key)
	if err != nil {
		t.Fatalf("migrated entry not found: %v", err)
	}
	manifest, err := ReadManifest(migratedDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.MigratedFrom != legacyKey {
		t.Errorf("migrated_from = %q, want %q", manifest.MigratedFrom, legacyKey)
	}
	if _, err := os.Stat(legacyDir); !os.IsNotExist(err) {
		t.Error("legacy directory should be gone after migration")
	}
	// Chunk content identical to a from-scratch extraction.
	gotIndex, err := ReadIndex(migratedDir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(gotIndex.Chunks) != len(wantIndex.Chunks) {
		t.Fatalf("chunk count after migration = %d, want %d", len(gotIndex.Chunks), len(wantIndex.Chunks))
	}
	for i := range gotIndex.Chunks {
		got, _ := ReadChunkBody(migratedDir, &gotIndex.Chunks[i])
		if got == nil {
			t.Fatalf("chunk %d missing after migration", i)
		}
	}
}

func TestExtract_missingSource(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Extract(filepath.Join(t.TempDir(), "ghost.pdf"), ExtractOptions{})
	if !errors.Is(err, models.ErrSourceNotFound) {
		t.Errorf("got %v, want ErrSourceNotFound", err)
	}
}

func TestExtract_emptySourceYieldsOneChunk(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "empty.txt", "")

	key, err := m.Extract(src, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	dir, _ := Find(root, key)
	index, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(index.Chunks) != 1 {
		t.Fatalf("got %d chunks, want exactly 1", len(index.Chunks))
	}
	body, err := ReadChunkBody(dir, &index.Chunks[0])
	if err != nil {
		t.Fatalf("ReadChunkBody: %v", err)
	}
	if body.Content != "" {
		t.Errorf("empty source chunk content = %q", body.Content)
	}
}

func TestRechunk_replacesChunksKeepsContent(t *testing.T) {
	m, root := newManager(t)
	src := writeSource(t, "notes.md", sampleMarkdown)
	key, _ := m.Extract(src, ExtractOptions{})
	dir, _ := Find(root, key)
	before, _ := ReadIndex(dir)

	// A much smaller bound forces different boundaries from the same content.
	tight := NewManager(root, extract.NewExtractor(), chunker.NewChunker(1, 10))
	if err := tight.Rechunk(key); err != nil {
		t.Fatalf("Rechunk: %v", err)
	}
	after, err := ReadIndex(dir)
	if err != nil {
		t.Fatalf("ReadIndex after rechunk: %v", err)
	}
	if len(after.Chunks) <= len(before.Chunks) {
		t.Errorf("rechunk with tight bounds: got %d chunks, had %d", len(after.Chunks), len(before.Chunks))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Quarterly Report (Final).docx", "quarterly_report_final"},
		{"data.xlsx", "data"},
		{"___.pdf", "document"},
		{"résumé.pdf", "r_sum"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFind_unknownKey(t *testing.T) {
	_, err := Find(t.TempDir(), "deadbeef")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLock_secondAcquireWaitsForRelease(t *testing.T) {
	root := t.TempDir()
	l1, err := acquireLock(root, "k1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	done := make(chan struct{})
	go func() {
		l2, err := acquireLock(root, "k1")
		if err == nil {
			l2.release()
		}
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second acquire should block while the lock is held")
	case <-time.After(200 * time.Millisecond):
	}
	l1.release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire should proceed after release")
	}
}
