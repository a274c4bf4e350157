package kv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps one file per key under a base directory. Values survive
// process restarts and are trivially inspectable.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

var _ Store = &FileStore{}

func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("file store: empty base directory")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "file store: create base directory")
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("file store: nil store")
	}
	path, err := s.pathFor(key)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "file store: read value")
	}
	return string(data), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	if s == nil {
		return errors.New("file store: nil store")
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Write-then-rename so a crash mid-write never leaves a truncated value.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return errors.Wrap(err, "file store: write value")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "file store: replace value")
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return errors.New("file store: nil store")
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "file store: delete value")
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) pathFor(key string) (string, error) {
	if key == "" {
		return "", errors.New("file store: key is empty")
	}
	return filepath.Join(s.baseDir, sanitizeKey(key)+".val"), nil
}

// sanitizeKey maps an arbitrary key to a safe file name. Keys only differ in
// a small fixed set, so simple character replacement is enough.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}
