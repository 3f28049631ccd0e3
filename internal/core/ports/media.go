package ports

import (
	"context"

	"kalonconnect/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// VideoSink is the single rendering target of a call session. Producers
// write RTP into it; once closed every write fails with domain.ErrSinkReleased.
type VideoSink interface {
	ID() domain.SinkID
	SessionID() domain.SessionID
	Quality() domain.VideoQuality
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

type SinkFactory interface {
	NewSink(sessionID domain.SessionID, quality domain.VideoQuality) (VideoSink, error)
}

// MediaTrack is one device-backed track. Stop may fail, e.g. when the
// track was already stopped.
type MediaTrack interface {
	ID() string
	Kind() domain.TrackKind
	Stop() error
}

type MediaStream interface {
	ID() string
	Tracks() []MediaTrack
}

// PeerConnector negotiates the WebRTC connection that carries a session's sink.
type PeerConnector interface {
	Connect(ctx context.Context, sessionID domain.SessionID, sink VideoSink) (webrtc.SessionDescription, MediaStream, error)
	Accept(ctx context.Context, sessionID domain.SessionID, answer webrtc.SessionDescription) error
	Disconnect(ctx context.Context, sessionID domain.SessionID) error
}
