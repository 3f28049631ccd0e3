package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// VideoConfigRepository stores the video config document as a JSON file.
// Writes go to a temp file that is renamed into place while holding an
// advisory lock, so readers never see half a document. Concurrent writers
// still overwrite each other.
type VideoConfigRepository struct {
	path string
	lock *flock.Flock
}

func NewVideoConfigRepository(path string) *VideoConfigRepository {
	return &VideoConfigRepository{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (r *VideoConfigRepository) Path() string {
	return r.path
}

func (r *VideoConfigRepository) Load(ctx context.Context) (domain.VideoSystemConfig, error) {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to create config directory: %w", err)
	}
	locked, err := r.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to lock config file: %w", err)
	}
	if locked {
		defer r.lock.Unlock()
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.VideoSystemConfig{}, domain.ErrConfigNotFound
		}
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg domain.VideoSystemConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.VideoSystemConfig{}, fmt.Errorf("failed to parse config file %s: %w", r.path, err)
	}
	return cfg, nil
}

func (r *VideoConfigRepository) Save(ctx context.Context, cfg domain.VideoSystemConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	locked, err := r.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	if locked {
		defer r.lock.Unlock()
	}

	tmp, err := os.CreateTemp(dir, ".video-systems-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
