package memory

import (
	"context"
	"sync"

	"kalonconnect/internal/core/domain"
)

// VideoConfigRepository keeps the document in process memory. It starts
// empty, so the first Load reports ErrConfigNotFound.
type VideoConfigRepository struct {
	mu  sync.RWMutex
	cfg *domain.VideoSystemConfig
}

func NewVideoConfigRepository() *VideoConfigRepository {
	return &VideoConfigRepository{}
}

func (r *VideoConfigRepository) Load(ctx context.Context) (domain.VideoSystemConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cfg == nil {
		return domain.VideoSystemConfig{}, domain.ErrConfigNotFound
	}
	return r.cfg.Clone(), nil
}

func (r *VideoConfigRepository) Save(ctx context.Context, cfg domain.VideoSystemConfig) error {
	c := cfg.Clone()

	r.mu.Lock()
	r.cfg = &c
	r.mu.Unlock()
	return nil
}
