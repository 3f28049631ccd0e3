package memory

import (
	"context"
	"testing"

	"kalonconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoConfigRepository(t *testing.T) {
	repo := NewVideoConfigRepository()
	ctx := context.Background()

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)

	cfg := domain.DefaultVideoSystemConfig()
	require.NoError(t, repo.Save(ctx, cfg))

	// mutating the caller's copy doesn't reach the stored one
	cfg.Options[0] = "zoom"

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultVideoSystemConfig(), got)
}
