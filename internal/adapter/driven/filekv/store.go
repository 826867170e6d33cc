// Package filekv implements the KVStore port as one file per key in a
// directory, guarded by an inter-process file lock.
package filekv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.KVStore = (*Store)(nil)

const (
	lockFileName   = ".lock"
	valueExtension = ".kv"
	lockRetryDelay = 25 * time.Millisecond
)

// Store keeps each value in <dir>/<escaped key>.kv. Writes go through a temp
// file and a rename so readers never see a partial value. The file lock
// serialises processes; mu serialises goroutines sharing the lock handle.
type Store struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// New creates the directory if needed and returns a Store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Get returns the value stored under key. ok is false when no file exists.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, false, fmt.Errorf("acquire read lock: %w", err)
	}
	if !locked {
		return nil, false, errors.New("acquire read lock: not acquired")
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read key %q: %w", key, err)
	}
	return data, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if !locked {
		return errors.New("acquire write lock: not acquired")
	}
	defer s.lock.Unlock()

	if err := atomicWrite(s.pathFor(key), value); err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	return nil
}

// Close releases the lock file handle.
func (s *Store) Close() error {
	return s.lock.Close()
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+valueExtension)
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over path.
func atomicWrite(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
