package webrtc

import (
	"testing"

	"kalonconnect/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkTrack_WriteAfterClose(t *testing.T) {
	sink, err := NewSinkTrack("s1", domain.QualityHD)
	require.NoError(t, err)

	assert.NotEmpty(t, sink.ID())
	assert.Equal(t, domain.SessionID("s1"), sink.SessionID())
	assert.Equal(t, "video-hd", sink.Track().ID())

	require.NoError(t, sink.WriteRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}, Payload: []byte{0x00}}))
	require.NoError(t, sink.Close())

	assert.ErrorIs(t, sink.WriteRTP(&rtp.Packet{}), domain.ErrSinkReleased)
	assert.Equal(t, uint64(1), sink.Stats().Packets)
}

func TestSinkTrack_KeyframeRequests(t *testing.T) {
	sink, err := NewSinkTrack("s1", domain.QualitySD)
	require.NoError(t, err)

	sink.RequestKeyframe()
	assert.True(t, sink.AwaitingKeyframe())

	// interframe: S=1, PID=0, frame tag P bit set
	require.NoError(t, sink.WriteRTP(&rtp.Packet{Payload: []byte{0x10, 0x01, 0x00, 0x00}}))
	assert.True(t, sink.AwaitingKeyframe())

	// keyframe: S=1, PID=0, frame tag P bit clear
	require.NoError(t, sink.WriteRTP(&rtp.Packet{Payload: []byte{0x10, 0x00, 0x00, 0x00}}))
	assert.False(t, sink.AwaitingKeyframe())

	stats := sink.Stats()
	assert.Equal(t, uint64(1), stats.Keyframes)
	assert.Equal(t, uint64(1), stats.KeyframeRequests)
	assert.Equal(t, uint64(2), stats.Packets)
}

func TestSinkFactory_DistinctSinks(t *testing.T) {
	f := NewSinkFactory()

	a, err := f.NewSink("s1", domain.QualityHD)
	require.NoError(t, err)
	b, err := f.NewSink("s1", domain.QualityHD)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
}
