package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/pkg/tracing"

	"go.uber.org/zap"
)

// ContinuityController owns the single video sink of one call session.
//
// It is a two-state machine. Mount on Unmounted creates the sink; Mount on
// Mounted hands back the sink that already exists, however often it is
// called. Only Unmount goes back to Unmounted. The controller is the only
// writer of the slot; producers read it through Sink.
type ContinuityController struct {
	sessionID domain.SessionID
	quality   domain.VideoQuality
	factory   ports.SinkFactory

	mu    sync.RWMutex
	state domain.SinkState
	sink  ports.VideoSink

	logger  *zap.Logger
	metrics ports.MetricsRecorder
	events  ports.EventPublisher
}

func NewContinuityController(
	sessionID domain.SessionID,
	quality domain.VideoQuality,
	factory ports.SinkFactory,
	logger *zap.Logger,
	metrics ports.MetricsRecorder,
	events ports.EventPublisher,
) *ContinuityController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContinuityController{
		sessionID: sessionID,
		quality:   quality,
		factory:   factory,
		state:     domain.SinkUnmounted,
		logger:    logger.Named("continuity").With(zap.String("session_id", string(sessionID))),
		metrics:   metricsOrNoop(metrics),
		events:    eventsOrNoop(events),
	}
}

// Mount returns the session's sink, creating it on the first call.
func (c *ContinuityController) Mount(ctx context.Context) (ports.VideoSink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.SinkMounted {
		c.logger.Debug("sink already mounted", zap.String("sink_id", string(c.sink.ID())))
		return c.sink, nil
	}

	ctx, span := tracing.TraceSession(ctx, "mount_sink", string(c.sessionID))
	defer span.End()

	sink, err := c.factory.NewSink(c.sessionID, c.quality)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("create video sink: %w", err)
	}

	c.sink = sink
	c.state = domain.SinkMounted
	tracing.AddSpanAttributes(ctx, tracing.SinkIDKey.String(string(sink.ID())))

	c.logger.Info("sink mounted", zap.String("sink_id", string(sink.ID())))
	c.metrics.RecordSinkMounted()
	c.events.Publish(domain.SessionEvent{
		Type:      domain.EventSinkMounted,
		SessionID: c.sessionID,
		SinkID:    sink.ID(),
		Timestamp: time.Now(),
	})
	return sink, nil
}

// Unmount releases the sink. It leaves device tracks alone; stopping them is
// the DeviceReleaser's job. Unmounting an unmounted controller does nothing.
func (c *ContinuityController) Unmount(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.SinkUnmounted {
		return nil
	}

	sink := c.sink
	c.sink = nil
	c.state = domain.SinkUnmounted

	c.metrics.RecordSinkUnmounted()
	c.events.Publish(domain.SessionEvent{
		Type:      domain.EventSinkUnmounted,
		SessionID: c.sessionID,
		SinkID:    sink.ID(),
		Timestamp: time.Now(),
	})

	if err := sink.Close(); err != nil {
		c.logger.Warn("sink close failed", zap.String("sink_id", string(sink.ID())), zap.Error(err))
		return fmt.Errorf("close video sink: %w", err)
	}
	c.logger.Info("sink unmounted", zap.String("sink_id", string(sink.ID())))
	return nil
}

// Sink returns the mounted sink, if any.
func (c *ContinuityController) Sink() (ports.VideoSink, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sink, c.sink != nil
}

func (c *ContinuityController) State() domain.SinkState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
