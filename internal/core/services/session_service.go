package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
	"kalonconnect/pkg/tracing"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// CallSession is the context object a call screen works through. It owns
// the session's video sink controller and device releaser, so nothing
// about the sink lives in process-wide state.
type CallSession struct {
	ID        domain.SessionID
	System    domain.VideoSystem
	Quality   domain.VideoQuality
	CreatedAt time.Time

	Sink    *ContinuityController
	Devices *DeviceReleaser
}

func (s *CallSession) Snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:        s.ID,
		System:    s.System,
		Quality:   s.Quality,
		SinkState: s.Sink.State(),
		Streams:   s.Devices.Tracked(),
		CreatedAt: s.CreatedAt,
	}
	if sink, ok := s.Sink.Sink(); ok {
		snap.SinkID = sink.ID()
	}
	return snap
}

type SessionService struct {
	config ports.VideoConfigService
	sinks  ports.SinkFactory
	peers  ports.PeerConnector

	mu       sync.RWMutex
	sessions map[domain.SessionID]*CallSession

	logger  *zap.Logger
	metrics ports.MetricsRecorder
	events  ports.EventPublisher
}

// NewSessionService wires the session registry. peers may be nil, in which
// case Connect and Accept are unavailable.
func NewSessionService(
	config ports.VideoConfigService,
	sinks ports.SinkFactory,
	peers ports.PeerConnector,
	logger *zap.Logger,
	metrics ports.MetricsRecorder,
	events ports.EventPublisher,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		config:   config,
		sinks:    sinks,
		peers:    peers,
		sessions: make(map[domain.SessionID]*CallSession),
		logger:   logger.Named("sessions"),
		metrics:  metricsOrNoop(metrics),
		events:   eventsOrNoop(events),
	}
}

// Start opens a call session on system, or on the configured default
// system when system is empty.
func (s *SessionService) Start(ctx context.Context, system domain.VideoSystem) (domain.SessionSnapshot, error) {
	cfg := s.config.Load(ctx)

	if system == "" {
		system = cfg.DefaultSystem
	}
	if !cfg.HasOption(system) {
		return domain.SessionSnapshot{}, fmt.Errorf("%w: %q", domain.ErrSystemNotAvailable, system)
	}

	id := domain.SessionID(uuid.NewString())
	session := &CallSession{
		ID:        id,
		System:    system,
		Quality:   cfg.VideoQuality,
		CreatedAt: time.Now(),
		Sink:      NewContinuityController(id, cfg.VideoQuality, s.sinks, s.logger, s.metrics, s.events),
		Devices:   NewDeviceReleaser(id, s.logger, s.metrics, s.events),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.metrics.RecordSessionStarted(system)
	s.logger.Info("session started",
		zap.String("session_id", string(id)),
		zap.String("system", string(system)),
		zap.String("quality", string(cfg.VideoQuality)),
	)
	s.events.Publish(domain.SessionEvent{
		Type:      domain.EventSessionStarted,
		SessionID: id,
		Timestamp: session.CreatedAt,
		Data: map[string]interface{}{
			"system":  system,
			"quality": cfg.VideoQuality,
		},
	})
	return session.Snapshot(), nil
}

// Session returns the live session context, for in-process producers that
// need the sink itself.
func (s *SessionService) Session(id domain.SessionID) (*CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, id domain.SessionID) (domain.SessionSnapshot, error) {
	session, err := s.Session(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *SessionService) List(ctx context.Context) []domain.SessionSnapshot {
	s.mu.RLock()
	sessions := make([]*CallSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	out := make([]domain.SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.Snapshot())
	}
	return out
}

func (s *SessionService) MountSink(ctx context.Context, id domain.SessionID) (ports.VideoSink, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return session.Sink.Mount(ctx)
}

func (s *SessionService) UnmountSink(ctx context.Context, id domain.SessionID) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	return session.Sink.Unmount(ctx)
}

// AttachStream hands an acquired media stream to the session so it is
// stopped on release. The most recent stream also becomes the fallback.
func (s *SessionService) AttachStream(ctx context.Context, id domain.SessionID, stream ports.MediaStream) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	session.Devices.Track(stream)
	session.Devices.RegisterFallback(stream)
	return nil
}

// Connect mounts the sink if needed and negotiates a peer connection that
// carries it, returning the local offer.
func (s *SessionService) Connect(ctx context.Context, id domain.SessionID) (webrtc.SessionDescription, error) {
	if s.peers == nil {
		return webrtc.SessionDescription{}, domain.ErrPeersDisabled
	}
	ctx, span := tracing.TraceSession(ctx, "connect", string(id))
	defer span.End()

	session, err := s.Session(id)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	sink, err := session.Sink.Mount(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return webrtc.SessionDescription{}, err
	}

	offer, stream, err := s.peers.Connect(ctx, id, sink)
	if err != nil {
		tracing.RecordError(ctx, err)
		return webrtc.SessionDescription{}, fmt.Errorf("connect peer: %w", err)
	}
	if err := s.AttachStream(ctx, id, stream); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (s *SessionService) Accept(ctx context.Context, id domain.SessionID, answer webrtc.SessionDescription) error {
	if s.peers == nil {
		return domain.ErrPeersDisabled
	}
	if _, err := s.Session(id); err != nil {
		return err
	}
	return s.peers.Accept(ctx, id, answer)
}

// Release stops every device stream of the session without ending it.
func (s *SessionService) Release(ctx context.Context, id domain.SessionID) (bool, error) {
	session, err := s.Session(id)
	if err != nil {
		return false, err
	}
	return session.Devices.ReleaseAllDevices(ctx), nil
}

// End tears the session down: sink first, then devices, then the peer
// connection. Teardown problems are logged; the session is removed anyway.
func (s *SessionService) End(ctx context.Context, id domain.SessionID) error {
	ctx, span := tracing.TraceSession(ctx, "end", string(id))
	defer span.End()

	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	if err := session.Sink.Unmount(ctx); err != nil {
		s.logger.Warn("sink unmount failed during teardown", zap.String("session_id", string(id)), zap.Error(err))
	}
	clean := session.Devices.ReleaseAllDevices(ctx)
	if s.peers != nil {
		if err := s.peers.Disconnect(ctx, id); err != nil && !errors.Is(err, domain.ErrPeerNotFound) {
			s.logger.Warn("peer disconnect failed", zap.String("session_id", string(id)), zap.Error(err))
		}
	}

	duration := time.Since(session.CreatedAt)
	s.metrics.RecordSessionEnded(duration)
	s.logger.Info("session ended",
		zap.String("session_id", string(id)),
		zap.Duration("duration", duration),
		zap.Bool("clean_release", clean),
	)
	s.events.Publish(domain.SessionEvent{
		Type:      domain.EventSessionEnded,
		SessionID: id,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"duration_ms": duration.Milliseconds()},
	})
	return nil
}

// Shutdown ends every open session.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.RLock()
	ids := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := s.End(ctx, id); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.logger.Warn("failed to end session on shutdown", zap.String("session_id", string(id)), zap.Error(err))
		}
	}
}
