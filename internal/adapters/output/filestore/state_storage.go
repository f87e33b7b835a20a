package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"facebot/internal/domain"
	"facebot/internal/ports/output"

	"github.com/sirupsen/logrus"
)

// Compile-time check to ensure StateStorage implements output.StateStorage interface
var _ output.StateStorage = (*StateStorage)(nil)

// MaxStateSizeBytes caps a stored value so a runaway session list cannot exhaust the disk
const MaxStateSizeBytes = 10 * 1024 * 1024

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// StateStorage struct - Output adapter keeping one JSON file per key.
//
// Storage structure:
//
//	{basePath}/
//	  {key}.json
type StateStorage struct {
	basePath string
}

// NewStateStorage func - Creates new file backed storage rooted at basePath
func NewStateStorage(basePath string) (*StateStorage, error) {
	if basePath == "" {
		basePath = "."
	}
	// 0700: owner-only access
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	logrus.Infof("File state storage rooted at %s", basePath)
	return &StateStorage{basePath: basePath}, nil
}

// Load reads the value stored under key
func (s *StateStorage) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return data, nil
}

// Save overwrites the value stored under key atomically
func (s *StateStorage) Save(ctx context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(value) > MaxStateSizeBytes {
		return fmt.Errorf("state size %d bytes exceeds maximum %d bytes", len(value), MaxStateSizeBytes)
	}

	// Write to temp file first, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, value, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to commit state file: %w", err)
	}
	return nil
}

// Clear removes the value stored under key. Clearing a missing key is not an error.
func (s *StateStorage) Clear(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

func (s *StateStorage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.basePath, key+".json"), nil
}
