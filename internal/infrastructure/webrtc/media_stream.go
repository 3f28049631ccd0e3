package webrtc

import (
	"fmt"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"

	"github.com/pion/webrtc/v3"
)

// senderStream is the server-side media of a peer connection, exposed so
// the session's device releaser can stop it.
type senderStream struct {
	id     string
	tracks []ports.MediaTrack
}

func newSenderStream(sessionID domain.SessionID, senders ...*webrtc.RTPSender) *senderStream {
	s := &senderStream{id: fmt.Sprintf("peer-%s", sessionID)}
	for _, sender := range senders {
		s.tracks = append(s.tracks, &senderTrack{sender: sender})
	}
	return s
}

func (s *senderStream) ID() string                 { return s.id }
func (s *senderStream) Tracks() []ports.MediaTrack { return s.tracks }

type senderTrack struct {
	sender *webrtc.RTPSender
}

func (t *senderTrack) ID() string {
	if track := t.sender.Track(); track != nil {
		return track.ID()
	}
	return ""
}

func (t *senderTrack) Kind() domain.TrackKind {
	if track := t.sender.Track(); track != nil && track.Kind() == webrtc.RTPCodecTypeAudio {
		return domain.TrackAudio
	}
	return domain.TrackVideo
}

func (t *senderTrack) Stop() error {
	return t.sender.Stop()
}
