package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"

	"go.uber.org/zap"
)

// DeviceReleaser stops the device-backed media of one call session.
// Release is best effort: a track that fails to stop is logged and the
// remaining tracks are still stopped. Nothing here returns an error.
type DeviceReleaser struct {
	sessionID domain.SessionID

	mu       sync.Mutex
	streams  map[string]ports.MediaStream
	fallback ports.MediaStream

	logger  *zap.Logger
	metrics ports.MetricsRecorder
	events  ports.EventPublisher
}

func NewDeviceReleaser(
	sessionID domain.SessionID,
	logger *zap.Logger,
	metrics ports.MetricsRecorder,
	events ports.EventPublisher,
) *DeviceReleaser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceReleaser{
		sessionID: sessionID,
		streams:   make(map[string]ports.MediaStream),
		logger:    logger.Named("devices").With(zap.String("session_id", string(sessionID))),
		metrics:   metricsOrNoop(metrics),
		events:    eventsOrNoop(events),
	}
}

// Track adds a stream to the set released by ReleaseAllDevices.
func (r *DeviceReleaser) Track(stream ports.MediaStream) {
	if stream == nil {
		return
	}
	r.mu.Lock()
	r.streams[stream.ID()] = stream
	r.mu.Unlock()
}

// RegisterFallback sets the stream released even when nobody handed it to
// StopStream or Track. A later registration replaces the earlier one.
func (r *DeviceReleaser) RegisterFallback(stream ports.MediaStream) {
	r.mu.Lock()
	r.fallback = stream
	r.mu.Unlock()
}

func (r *DeviceReleaser) ClearFallback() {
	r.mu.Lock()
	r.fallback = nil
	r.mu.Unlock()
}

// Tracked returns how many streams are waiting to be released, the
// fallback included.
func (r *DeviceReleaser) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.streams)
	if r.fallback != nil {
		if _, dup := r.streams[r.fallback.ID()]; !dup {
			n++
		}
	}
	return n
}

// StopStream stops every track of stream and reports whether all of them
// stopped cleanly. A nil stream counts as success.
func (r *DeviceReleaser) StopStream(ctx context.Context, stream ports.MediaStream) bool {
	if stream == nil {
		return true
	}

	ok := true
	for _, track := range stream.Tracks() {
		if track == nil {
			continue
		}
		if err := stopTrack(track); err != nil {
			ok = false
			r.logger.Warn("track stop failed",
				zap.String("stream_id", stream.ID()),
				zap.String("track_id", track.ID()),
				zap.String("kind", string(track.Kind())),
				zap.Error(err),
			)
			r.metrics.RecordTrackStop(err)
			continue
		}
		r.metrics.RecordTrackStop(nil)
	}
	return ok
}

// ReleaseAllDevices stops every tracked stream and the fallback stream,
// then forgets them all.
func (r *DeviceReleaser) ReleaseAllDevices(ctx context.Context) bool {
	r.mu.Lock()
	streams := make([]ports.MediaStream, 0, len(r.streams)+1)
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	if r.fallback != nil {
		if _, dup := r.streams[r.fallback.ID()]; !dup {
			streams = append(streams, r.fallback)
		}
	}
	r.streams = make(map[string]ports.MediaStream)
	r.fallback = nil
	r.mu.Unlock()

	ok := true
	for _, s := range streams {
		if !r.StopStream(ctx, s) {
			ok = false
		}
	}

	r.logger.Info("devices released", zap.Int("streams", len(streams)), zap.Bool("clean", ok))
	r.events.Publish(domain.SessionEvent{
		Type:      domain.EventDevicesReleased,
		SessionID: r.sessionID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"streams": len(streams),
			"clean":   ok,
		},
	})
	return ok
}

// stopTrack turns a panicking Stop into an error so one bad track can't
// abort the release loop.
func stopTrack(track ports.MediaTrack) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("track stop panicked: %v", rec)
		}
	}()
	return track.Stop()
}
