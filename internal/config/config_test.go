package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tameru/internal/chunker"
)

func TestLoad_appliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Cache.Root != "/usr/local/var/tameru/cache" {
		t.Errorf("cache root = %q", cfg.Cache.Root)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8090 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Chunker.MinTokens != chunker.DefaultMinTokens || cfg.Chunker.MaxTokens != chunker.DefaultMaxTokens {
		t.Errorf("chunker defaults = %+v", cfg.Chunker)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("watch extensions default not applied")
	}
}

func TestLoad_expandsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `cache:
  root: ./cache
registry:
  database_path: ./registry.db
watch:
  directories:
    - ./docs
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Root != filepath.Join(dir, "cache") {
		t.Errorf("cache root = %q", cfg.Cache.Root)
	}
	if cfg.Registry.DatabasePath != filepath.Join(dir, "registry.db") {
		t.Errorf("registry path = %q", cfg.Registry.DatabasePath)
	}
	if cfg.Watch.Directories[0] != filepath.Join(dir, "docs") {
		t.Errorf("watch dir = %q", cfg.Watch.Directories[0])
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestRecursiveOrDefault(t *testing.T) {
	var w WatchConfig
	if !w.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
	f := false
	w.Recursive = &f
	if w.RecursiveOrDefault() {
		t.Error("explicit false should win")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{Debug: true}
	ApplyDefaults(cfg)
	cfg.Watch.Directories = []string{"/docs"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Debug || len(loaded.Watch.Directories) != 1 {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}
