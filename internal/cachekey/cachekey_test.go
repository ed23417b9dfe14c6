package cachekey

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tameru/internal/models"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDerive_deterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.docx", []byte("hello world"))

	k1, err := Derive(path)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	k2, err := Derive(path)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if k1 != k2 {
		t.Errorf("same file should give same key: %q vs %q", k1, k2)
	}
	if len(k1) != 2*keyBytes {
		t.Errorf("key length = %d, want %d", len(k1), 2*keyBytes)
	}
}

func TestDerive_renameInvariant(t *testing.T) {
	dir := t.TempDir()
	content := []byte("quarterly figures")
	p1 := writeFile(t, dir, "a.xlsx", content)
	p2 := writeFile(t, dir, "renamed-and-moved.xlsx", content)

	k1, _ := Derive(p1)
	k2, _ := Derive(p2)
	if k1 != k2 {
		t.Errorf("same content under different names should give same key: %q vs %q", k1, k2)
	}
}

func TestDerive_contentSensitive(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "a.pdf", []byte("version one"))
	p2 := writeFile(t, dir, "b.pdf", []byte("version two"))

	k1, _ := Derive(p1)
	k2, _ := Derive(p2)
	if k1 == k2 {
		t.Errorf("different content should give different keys: %q", k1)
	}
}

func TestDerive_missingFile(t *testing.T) {
	_, err := Derive(filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, models.ErrSourceNotFound) {
		t.Errorf("missing file: got %v, want ErrSourceNotFound", err)
	}
}

func TestDeriveLegacy_differsFromNewScheme(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.docx", []byte("legacy content"))

	k, _ := Derive(path)
	lk, err := DeriveLegacy(path)
	if err != nil {
		t.Fatalf("DeriveLegacy: %v", err)
	}
	if k == lk {
		t.Error("legacy key should differ from new-scheme key")
	}
	if len(lk) != 32 {
		t.Errorf("legacy key length = %d, want 32", len(lk))
	}
}

func TestFromBytes_sizeMatters(t *testing.T) {
	// Appending a NUL changes size and content; the key must change.
	k1 := FromBytes([]byte("abc"))
	k2 := FromBytes([]byte("abc\x00"))
	if k1 == k2 {
		t.Error("keys should differ when content differs")
	}
}
