package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Advisory per-key lock held for the duration of a write-to-temp-and-rename
// sequence. Readers never lock: they only ever observe atomically published
// directories. A second writer waits, then re-checks whether the entry was
// published while it waited.
const (
	lockPollInterval = 100 * time.Millisecond
	lockWaitTimeout  = 30 * time.Second
	lockStaleAfter   = 10 * time.Minute
)

type keyLock struct {
	path string
}

// acquireLock takes the advisory lock for key under root, waiting for a
// concurrent holder. Lock files older than lockStaleAfter are treated as
// left behind by a crashed process and removed.
func acquireLock(root, key string) (*keyLock, error) {
	dir := filepath.Join(root, ".locks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, key+".lock")
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return &keyLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for extraction lock on key %s", key)
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *keyLock) release() {
	_ = os.Remove(l.path)
}
