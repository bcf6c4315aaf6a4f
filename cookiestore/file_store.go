package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps cookies of every base URL in one JSON file, mode 0600.
type FileStore struct {
	Path string

	mu sync.Mutex
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// DefaultFilePath is ~/.sala/cookies.json, or .sala/cookies.json when the
// home directory is unknown.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".sala", "cookies.json")
	}
	return filepath.Join(home, ".sala", "cookies.json")
}

func (s *FileStore) Load(_ context.Context, key string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return all[key], nil
}

func (s *FileStore) Save(_ context.Context, key string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		delete(all, key)
	} else {
		all[key] = records
	}
	return s.writeAll(all)
}

func (s *FileStore) Clear(ctx context.Context, key string) error {
	return s.Save(ctx, key, nil)
}

func (s *FileStore) readAll() (map[string][]Record, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cookiestore: read file: %w", err)
	}

	all := map[string][]Record{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("cookiestore: decode json: %w", err)
	}
	return all, nil
}

func (s *FileStore) writeAll(all map[string][]Record) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cookiestore: create dir: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("cookiestore: encode json: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.json")
	if err != nil {
		return fmt.Errorf("cookiestore: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cookiestore: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cookiestore: close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("cookiestore: chmod file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("cookiestore: rename file: %w", err)
	}
	return nil
}
