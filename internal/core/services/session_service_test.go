package services

import (
	"context"
	"testing"

	"kalonconnect/internal/core/domain"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T, peers *MockPeerConnector) (*SessionService, *fakeSinkFactory, *eventRecorder, *MetricsService) {
	t.Helper()

	factory := &fakeSinkFactory{}
	events := &eventRecorder{}
	metrics := NewMetricsService(nil)
	config := NewVideoConfigService(&memoryConfigRepo{}, nil, nil, nil)

	var svc *SessionService
	if peers != nil {
		svc = NewSessionService(config, factory, peers, nil, metrics, events)
	} else {
		svc = NewSessionService(config, factory, nil, nil, metrics, events)
	}
	return svc, factory, events, metrics
}

func TestSessionService_StartUsesDefaultSystem(t *testing.T) {
	svc, _, events, metrics := newTestSessionService(t, nil)

	snap, err := svc.Start(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, domain.SystemGoogleMeet, snap.System)
	assert.Equal(t, domain.QualityHD, snap.Quality)
	assert.Equal(t, domain.SinkUnmounted, snap.SinkState)
	assert.Equal(t, []domain.EventType{domain.EventSessionStarted}, events.Types())
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveSessions)
}

func TestSessionService_StartRejectsUnavailableSystem(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t, nil)

	_, err := svc.Start(context.Background(), "zoom")
	assert.ErrorIs(t, err, domain.ErrSystemNotAvailable)
	assert.Empty(t, svc.List(context.Background()))
}

func TestSessionService_SinkLifecycle(t *testing.T) {
	svc, factory, _, _ := newTestSessionService(t, nil)
	ctx := context.Background()

	snap, err := svc.Start(ctx, domain.SystemHighmesh)
	require.NoError(t, err)

	first, err := svc.MountSink(ctx, snap.ID)
	require.NoError(t, err)
	again, err := svc.MountSink(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), again.ID())

	got, err := svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SinkMounted, got.SinkState)
	assert.Equal(t, first.ID(), got.SinkID)

	require.NoError(t, svc.UnmountSink(ctx, snap.ID))
	second, err := svc.MountSink(ctx, snap.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, 2, factory.Created())
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.MountSink(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = svc.Release(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, svc.End(ctx, "missing"), domain.ErrSessionNotFound)
}

func TestSessionService_ConnectAcceptEnd(t *testing.T) {
	peers := new(MockPeerConnector)
	svc, factory, events, metrics := newTestSessionService(t, peers)
	ctx := context.Background()

	snap, err := svc.Start(ctx, "")
	require.NoError(t, err)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}
	stream := newFakeStream("peer-"+string(snap.ID), 1)

	peers.On("Connect", mock.Anything, snap.ID, mock.Anything).Return(offer, stream, nil).Once()
	peers.On("Accept", mock.Anything, snap.ID, answer).Return(nil).Once()
	peers.On("Disconnect", mock.Anything, snap.ID).Return(domain.ErrPeerNotFound).Once()

	got, err := svc.Connect(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, offer, got)
	assert.Equal(t, 1, factory.Created())

	require.NoError(t, svc.Accept(ctx, snap.ID, answer))

	current, err := svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Streams)

	require.NoError(t, svc.End(ctx, snap.ID))

	assert.True(t, factory.created[0].Closed())
	assert.Equal(t, 1, stream.tracks[0].stopped)
	assert.Empty(t, svc.List(ctx))
	assert.Zero(t, metrics.Snapshot().ActiveSessions)
	assert.Equal(t, []domain.EventType{
		domain.EventSessionStarted,
		domain.EventSinkMounted,
		domain.EventSinkUnmounted,
		domain.EventDevicesReleased,
		domain.EventSessionEnded,
	}, events.Types())
	peers.AssertExpectations(t)
}

func TestSessionService_ReleaseKeepsSession(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t, nil)
	ctx := context.Background()

	snap, err := svc.Start(ctx, "")
	require.NoError(t, err)

	stream := newFakeStream("cam", 2)
	stream.tracks[0].err = errDiskFull
	require.NoError(t, svc.AttachStream(ctx, snap.ID, stream))

	clean, err := svc.Release(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, clean)
	assert.Equal(t, 1, stream.tracks[1].stopped)

	_, err = svc.Get(ctx, snap.ID)
	assert.NoError(t, err)
}

func TestSessionService_ConnectWithoutPeers(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t, nil)
	snap, err := svc.Start(context.Background(), "")
	require.NoError(t, err)

	_, err = svc.Connect(context.Background(), snap.ID)
	assert.Error(t, err)
}

func TestSessionService_Shutdown(t *testing.T) {
	svc, _, _, _ := newTestSessionService(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Start(ctx, "")
		require.NoError(t, err)
	}
	svc.Shutdown(ctx)
	assert.Empty(t, svc.List(ctx))
}
