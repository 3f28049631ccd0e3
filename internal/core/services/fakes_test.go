package services

import (
	"context"
	"errors"
	"sync"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/mock"
)

type MockVideoConfigRepository struct {
	mock.Mock
}

func (m *MockVideoConfigRepository) Load(ctx context.Context) (domain.VideoSystemConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.VideoSystemConfig), args.Error(1)
}

func (m *MockVideoConfigRepository) Save(ctx context.Context, cfg domain.VideoSystemConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type MockPeerConnector struct {
	mock.Mock
}

func (m *MockPeerConnector) Connect(ctx context.Context, sessionID domain.SessionID, sink ports.VideoSink) (webrtc.SessionDescription, ports.MediaStream, error) {
	args := m.Called(ctx, sessionID, sink)
	var stream ports.MediaStream
	if s := args.Get(1); s != nil {
		stream = s.(ports.MediaStream)
	}
	return args.Get(0).(webrtc.SessionDescription), stream, args.Error(2)
}

func (m *MockPeerConnector) Accept(ctx context.Context, sessionID domain.SessionID, answer webrtc.SessionDescription) error {
	args := m.Called(ctx, sessionID, answer)
	return args.Error(0)
}

func (m *MockPeerConnector) Disconnect(ctx context.Context, sessionID domain.SessionID) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// memoryConfigRepo keeps the document in memory; a nil doc reads as missing.
type memoryConfigRepo struct {
	mu  sync.Mutex
	doc *domain.VideoSystemConfig
}

func (r *memoryConfigRepo) Load(ctx context.Context) (domain.VideoSystemConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return domain.VideoSystemConfig{}, domain.ErrConfigNotFound
	}
	return r.doc.Clone(), nil
}

func (r *memoryConfigRepo) Save(ctx context.Context, cfg domain.VideoSystemConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := cfg.Clone()
	r.doc = &c
	return nil
}

type fakeSink struct {
	id        domain.SinkID
	sessionID domain.SessionID
	quality   domain.VideoQuality

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func (s *fakeSink) ID() domain.SinkID            { return s.id }
func (s *fakeSink) SessionID() domain.SessionID  { return s.sessionID }
func (s *fakeSink) Quality() domain.VideoQuality { return s.quality }

func (s *fakeSink) WriteRTP(*rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSinkReleased
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSinkFactory struct {
	mu      sync.Mutex
	created []*fakeSink
	err     error
}

func (f *fakeSinkFactory) NewSink(sessionID domain.SessionID, quality domain.VideoQuality) (ports.VideoSink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sink := &fakeSink{id: domain.SinkID(uuid.NewString()), sessionID: sessionID, quality: quality}
	f.created = append(f.created, sink)
	return sink, nil
}

func (f *fakeSinkFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeTrack struct {
	id      string
	kind    domain.TrackKind
	err     error
	panics  bool
	stopped int
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.TrackKind { return t.kind }

func (t *fakeTrack) Stop() error {
	t.stopped++
	if t.panics {
		panic("device vanished")
	}
	return t.err
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []ports.MediaTrack {
	out := make([]ports.MediaTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func newFakeStream(id string, n int) *fakeStream {
	s := &fakeStream{id: id}
	for i := 0; i < n; i++ {
		kind := domain.TrackVideo
		if i%2 == 0 {
			kind = domain.TrackAudio
		}
		s.tracks = append(s.tracks, &fakeTrack{id: uuid.NewString(), kind: kind})
	}
	return s
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (r *eventRecorder) Publish(e domain.SessionEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var errDiskFull = errors.New("disk full")
