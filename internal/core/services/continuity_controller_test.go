package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kalonconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuityController_MountIsIdempotent(t *testing.T) {
	factory := &fakeSinkFactory{}
	events := &eventRecorder{}
	c := NewContinuityController("s1", domain.QualityHD, factory, nil, nil, events)
	ctx := context.Background()

	first, err := c.Mount(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.Mount(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID(), again.ID())
	}

	assert.Equal(t, 1, factory.Created())
	assert.Equal(t, domain.SinkMounted, c.State())
	assert.Equal(t, []domain.EventType{domain.EventSinkMounted}, events.Types())
}

func TestContinuityController_ConcurrentMount(t *testing.T) {
	factory := &fakeSinkFactory{}
	c := NewContinuityController("s1", domain.QualitySD, factory, nil, nil, nil)

	var wg sync.WaitGroup
	ids := make([]domain.SinkID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sink, err := c.Mount(context.Background())
			if err == nil {
				ids[i] = sink.ID()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, factory.Created())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestContinuityController_UnmountThenMountCreatesNewSink(t *testing.T) {
	factory := &fakeSinkFactory{}
	c := NewContinuityController("s1", domain.QualityHD, factory, nil, nil, nil)
	ctx := context.Background()

	first, err := c.Mount(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Unmount(ctx))

	assert.Equal(t, domain.SinkUnmounted, c.State())
	assert.True(t, first.(*fakeSink).Closed())
	assert.ErrorIs(t, first.WriteRTP(nil), domain.ErrSinkReleased)
	_, ok := c.Sink()
	assert.False(t, ok)

	second, err := c.Mount(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, factory.Created())
}

func TestContinuityController_UnmountWhenUnmounted(t *testing.T) {
	events := &eventRecorder{}
	c := NewContinuityController("s1", domain.QualityHD, &fakeSinkFactory{}, nil, nil, events)

	assert.NoError(t, c.Unmount(context.Background()))
	assert.Equal(t, domain.SinkUnmounted, c.State())
	assert.Empty(t, events.Types())
}

func TestContinuityController_UnmountLeavesDevicesAlone(t *testing.T) {
	ctx := context.Background()
	c := NewContinuityController("s1", domain.QualityHD, &fakeSinkFactory{}, nil, nil, nil)
	devices := NewDeviceReleaser("s1", nil, nil, nil)

	stream := newFakeStream("cam", 2)
	devices.Track(stream)

	_, err := c.Mount(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Unmount(ctx))

	for _, track := range stream.tracks {
		assert.Zero(t, track.stopped)
	}
	assert.Equal(t, 1, devices.Tracked())
}

func TestContinuityController_MountFailure(t *testing.T) {
	factory := &fakeSinkFactory{err: errors.New("no encoder")}
	c := NewContinuityController("s1", domain.QualityHD, factory, nil, nil, nil)

	_, err := c.Mount(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.SinkUnmounted, c.State())
}

func TestContinuityController_CloseErrorStillUnmounts(t *testing.T) {
	ctx := context.Background()
	c := NewContinuityController("s1", domain.QualityHD, &fakeSinkFactory{}, nil, nil, nil)

	mounted, err := c.Mount(ctx)
	require.NoError(t, err)
	mounted.(*fakeSink).closeErr = errors.New("already gone")

	assert.Error(t, c.Unmount(ctx))
	assert.Equal(t, domain.SinkUnmounted, c.State())
}
