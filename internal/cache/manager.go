package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tameru/internal/cachekey"
	"github.com/hyperjump/tameru/internal/chunker"
	"github.com/hyperjump/tameru/internal/extract"
	"github.com/hyperjump/tameru/internal/models"
	"github.com/hyperjump/tameru/internal/store"
)

// Manager owns a cache root directory. Extraction is idempotent per content
// key; every write sequence lands in a temporary sibling directory and is
// published with one atomic rename, so concurrent readers only ever see a
// fully formed entry or none at all.
type Manager struct {
	root      string
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger for debug output (cache hits, migrations, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a cache manager rooted at root. The root is explicit
// configuration, never derived from the environment, so tests can point it
// at a temporary directory.
func NewManager(root string, ex *extract.Extractor, ch *chunker.Chunker, opts ...Option) *Manager {
	m := &Manager{root: root, extractor: ex, chunker: ch}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }

// ExtractOptions carries per-call extraction parameters.
type ExtractOptions struct {
	// Force discards any existing cache entry and re-extracts from scratch.
	Force bool
	// Password unlocks encrypted sources.
	Password string
}

// Extract ensures a cache entry exists for the document at path and returns
// its key. When an entry for the content already exists and Force is unset,
// nothing is written. When only a legacy-keyed entry exists it is migrated
// instead of re-extracted. Parse failures abort before any write.
func (m *Manager) Extract(path string, opts ExtractOptions) (string, error) {
	key, err := cachekey.Derive(path)
	if err != nil {
		return "", err
	}
	if !opts.Force {
		if dir, findErr := Find(m.root, key); findErr == nil {
			if m.logger != nil {
				m.logger.Debug("cache hit", zap.String("key", key), zap.String("dir", dir))
			}
			return key, nil
		}
	}

	lock, err := acquireLock(m.root, key)
	if err != nil {
		return "", err
	}
	defer lock.release()

	// Another process may have published the entry while we waited.
	if !opts.Force {
		if _, findErr := Find(m.root, key); findErr == nil {
			return key, nil
		}
		if migrated, migErr := m.migrateLegacy(path, key); migErr != nil {
			return "", migErr
		} else if migrated {
			return key, nil
		}
	}

	return key, m.extractFresh(path, key, opts)
}

// migrateLegacy relocates a legacy-keyed entry to the new key, stamping the
// manifest with the legacy key it came from. Returns false when no legacy
// entry exists.
func (m *Manager) migrateLegacy(path, key string) (bool, error) {
	legacyKey, err := cachekey.DeriveLegacy(path)
	if err != nil {
		return false, err
	}
	legacyDir, err := Find(m.root, legacyKey)
	if err != nil {
		return false, nil
	}

	format := extract.Format(path)
	tmp, err := m.tempDir(format)
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(tmp)

	if err := copyDir(legacyDir, tmp); err != nil {
		return false, fmt.Errorf("copy legacy entry: %w", err)
	}
	manifest, err := ReadManifest(tmp)
	if err != nil {
		// Legacy entries may predate the manifest; synthesize one.
		manifest = &models.Manifest{
			OriginalName:   filepath.Base(path),
			Format:         format,
			ChunkerVersion: chunker.Version,
			ExtractedAt:    time.Now().UTC(),
		}
	}
	manifest.Key = key
	manifest.Hash = key
	manifest.HashAlgorithm = cachekey.Algorithm
	manifest.MigratedFrom = legacyKey
	if err := writeJSON(filepath.Join(tmp, ManifestFile), manifest); err != nil {
		return false, fmt.Errorf("write migrated manifest: %w", err)
	}

	final := filepath.Join(m.root, format, EntryDirName(filepath.Base(path), key))
	if err := os.Rename(tmp, final); err != nil {
		return false, fmt.Errorf("publish migrated entry: %w", err)
	}
	_ = os.RemoveAll(legacyDir)
	if m.logger != nil {
		m.logger.Info("cache entry migrated",
			zap.String("key", key),
			zap.String("legacy_key", legacyKey),
		)
	}
	return true, nil
}

// extractFresh runs the full parse/store/chunk pipeline into a temp
// directory and publishes it atomically.
func (m *Manager) extractFresh(path, key string, opts ExtractOptions) error {
	content, err := m.extractor.Parse(path, extract.Options{Password: opts.Password})
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, path, err)
	}

	format := extract.Format(path)
	tmp, err := m.tempDir(format)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := store.Write(tmp, content); err != nil {
		return err
	}
	chunks := m.chunker.Chunk(content)
	if err := writeChunks(tmp, chunks); err != nil {
		return err
	}
	manifest := &models.Manifest{
		Key:            key,
		OriginalName:   filepath.Base(path),
		Hash:           key,
		HashAlgorithm:  cachekey.Algorithm,
		SizeBytes:      info.Size(),
		ExtractedAt:    time.Now().UTC(),
		Format:         format,
		ChunkerVersion: chunker.Version,
	}
	if err := writeJSON(filepath.Join(tmp, ManifestFile), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if old, findErr := Find(m.root, key); findErr == nil {
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("discard old entry: %w", err)
		}
	}
	final := filepath.Join(m.root, format, EntryDirName(filepath.Base(path), key))
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish entry: %w", err)
	}
	if m.logger != nil {
		m.logger.Info("cache entry extracted",
			zap.String("key", key),
			zap.String("format", format),
			zap.Int("chunks", len(chunks)),
			zap.Bool("force", opts.Force),
		)
	}
	return nil
}

// Rechunk regenerates the chunk list of an existing entry from its stored
// structured content, replacing the whole entry atomically.
func (m *Manager) Rechunk(key string) error {
	dir, err := Find(m.root, key)
	if err != nil {
		return err
	}
	lock, err := acquireLock(m.root, key)
	if err != nil {
		return err
	}
	defer lock.release()

	content, err := store.Read(dir)
	if err != nil {
		return err
	}
	manifest, err := ReadManifest(dir)
	if err != nil {
		return err
	}

	tmp, err := m.tempDir(manifest.Format)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := store.Write(tmp, content); err != nil {
		return err
	}
	chunks := m.chunker.Chunk(content)
	if err := writeChunks(tmp, chunks); err != nil {
		return err
	}
	manifest.ChunkerVersion = chunker.Version
	if err := writeJSON(filepath.Join(tmp, ManifestFile), manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discard old entry: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("publish rechunked entry: %w", err)
	}
	if m.logger != nil {
		m.logger.Info("cache entry rechunked", zap.String("key", key), zap.Int("chunks", len(chunks)))
	}
	return nil
}

// tempDir creates a unique temporary sibling directory under the format
// subtree, so the final rename stays within one filesystem.
func (m *Manager) tempDir(format string) (string, error) {
	dir := filepath.Join(m.root, format, ".tmp-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return dir, nil
}

// writeChunks writes every chunk body, then the index last, so an index in a
// published entry always references existing bodies.
func writeChunks(dir string, chunks []models.Chunk) error {
	chunksDir := filepath.Join(dir, ChunksDir)
	if err := os.MkdirAll(chunksDir, 0755); err != nil {
		return fmt.Errorf("create chunks directory: %w", err)
	}
	index := models.ChunkIndex{
		ChunkerVersion: chunker.Version,
		Chunks:         make([]models.ChunkRef, 0, len(chunks)),
	}
	for i := range chunks {
		ch := &chunks[i]
		file := fmt.Sprintf("chunk_%04d.json", ch.ID)
		body := models.ChunkBody{ID: ch.ID, Context: ch.Context, Content: ch.Content}
		if err := writeJSON(filepath.Join(chunksDir, file), &body); err != nil {
			return fmt.Errorf("write chunk %d: %w", ch.ID, err)
		}
		index.TotalTokens += ch.TokenEstimate
		index.TotalChars += ch.CharCount
		index.Chunks = append(index.Chunks, models.ChunkRef{
			ID:            ch.ID,
			Type:          ch.Type,
			Boundary:      ch.Boundary,
			TokenEstimate: ch.TokenEstimate,
			CharCount:     ch.CharCount,
			File:          file,
		})
	}
	if err := writeJSON(filepath.Join(chunksDir, IndexFile), &index); err != nil {
		return fmt.Errorf("write chunk index: %w", err)
	}
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
