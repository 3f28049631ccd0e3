package webrtc

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
)

// SinkTrack is a video sink backed by a local static RTP track. Whatever a
// producer writes is forwarded to every peer connection the track is
// attached to.
type SinkTrack struct {
	id        domain.SinkID
	sessionID domain.SessionID
	quality   domain.VideoQuality
	mountedAt time.Time
	track     *webrtc.TrackLocalStaticRTP

	mu     sync.RWMutex
	closed bool

	packets          atomic.Uint64
	keyframes        atomic.Uint64
	keyframeRequests atomic.Uint64
	awaitingKeyframe atomic.Bool
}

func NewSinkTrack(sessionID domain.SessionID, quality domain.VideoQuality) (*SinkTrack, error) {
	id := domain.SinkID(uuid.NewString())
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		fmt.Sprintf("video-%s", quality),
		fmt.Sprintf("kalon-%s", sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink track: %w", err)
	}
	return &SinkTrack{
		id:        id,
		sessionID: sessionID,
		quality:   quality,
		mountedAt: time.Now(),
		track:     track,
	}, nil
}

func (s *SinkTrack) ID() domain.SinkID            { return s.id }
func (s *SinkTrack) SessionID() domain.SessionID  { return s.sessionID }
func (s *SinkTrack) Quality() domain.VideoQuality { return s.quality }
func (s *SinkTrack) MountedAt() time.Time         { return s.mountedAt }

// Track exposes the underlying pion track for attaching to a peer connection.
func (s *SinkTrack) Track() *webrtc.TrackLocalStaticRTP {
	return s.track
}

// WriteRTP forwards one packet. Writes after Close fail with ErrSinkReleased.
func (s *SinkTrack) WriteRTP(packet *rtp.Packet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.ErrSinkReleased
	}
	if packet == nil {
		return nil
	}

	if isVP8Keyframe(packet) {
		s.keyframes.Add(1)
		s.awaitingKeyframe.Store(false)
	}
	s.packets.Add(1)
	return s.track.WriteRTP(packet)
}

// RequestKeyframe records a PLI or FIR from a remote receiver. Producers
// poll AwaitingKeyframe and send one.
func (s *SinkTrack) RequestKeyframe() {
	s.keyframeRequests.Add(1)
	s.awaitingKeyframe.Store(true)
}

func (s *SinkTrack) AwaitingKeyframe() bool {
	return s.awaitingKeyframe.Load()
}

func (s *SinkTrack) Stats() SinkStats {
	return SinkStats{
		Packets:          s.packets.Load(),
		Keyframes:        s.keyframes.Load(),
		KeyframeRequests: s.keyframeRequests.Load(),
	}
}

func (s *SinkTrack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type SinkStats struct {
	Packets          uint64 `json:"packets"`
	Keyframes        uint64 `json:"keyframes"`
	KeyframeRequests uint64 `json:"keyframe_requests"`
}

// isVP8Keyframe reports whether packet starts a VP8 key frame.
func isVP8Keyframe(packet *rtp.Packet) bool {
	if len(packet.Payload) == 0 {
		return false
	}
	var vp8 codecs.VP8Packet
	payload, err := vp8.Unmarshal(packet.Payload)
	if err != nil || len(payload) == 0 {
		return false
	}
	// P bit of the VP8 frame tag is 0 for key frames
	return vp8.S == 1 && vp8.PID == 0 && payload[0]&0x01 == 0
}

type SinkFactory struct{}

func NewSinkFactory() *SinkFactory {
	return &SinkFactory{}
}

func (SinkFactory) NewSink(sessionID domain.SessionID, quality domain.VideoQuality) (ports.VideoSink, error) {
	return NewSinkTrack(sessionID, quality)
}
