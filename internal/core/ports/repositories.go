package ports

import (
	"context"
	"io"

	"kalonconnect/internal/core/domain"
)

// VideoConfigRepository persists the single video system document.
// Save replaces the whole document; there is no merge and no versioning.
type VideoConfigRepository interface {
	Load(ctx context.Context) (domain.VideoSystemConfig, error)
	Save(ctx context.Context, cfg domain.VideoSystemConfig) error
}

// RecordingStorage stores recording blobs under a flat namespace.
type RecordingStorage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}
