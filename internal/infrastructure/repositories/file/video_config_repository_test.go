package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"kalonconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoConfigRepository_Missing(t *testing.T) {
	repo := NewVideoConfigRepository(filepath.Join(t.TempDir(), "config", "video-systems.json"))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestVideoConfigRepository_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video-systems.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"defaultSystem":`), 0644))

	_, err := NewVideoConfigRepository(path).Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestVideoConfigRepository_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "video-systems.json")
	repo := NewVideoConfigRepository(path)
	ctx := context.Background()

	want := domain.DefaultVideoSystemConfig()
	want.VideoQuality = domain.QualitySD
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Contains(t, []string{"video-systems.json", "video-systems.json.lock"}, e.Name())
	}
}

func TestVideoConfigRepository_WaitingRoomAbsentStaysAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video-systems.json")
	repo := NewVideoConfigRepository(path)
	ctx := context.Background()

	cfg := domain.DefaultVideoSystemConfig()
	cfg.WaitingRoom = nil
	require.NoError(t, repo.Save(ctx, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "waitingRoom")

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.WaitingRoom)
}

func TestVideoConfigRepository_ConcurrentWritersLeaveWholeDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video-systems.json")
	ctx := context.Background()

	sd := domain.DefaultVideoSystemConfig()
	sd.VideoQuality = domain.QualitySD
	hd := domain.DefaultVideoSystemConfig()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := hd
			if i%2 == 0 {
				cfg = sd
			}
			assert.NoError(t, NewVideoConfigRepository(path).Save(ctx, cfg))
		}(i)
	}
	wg.Wait()

	got, err := NewVideoConfigRepository(path).Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, []domain.VideoQuality{domain.QualitySD, domain.QualityHD}, got.VideoQuality)
}
