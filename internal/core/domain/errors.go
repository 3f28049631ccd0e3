package domain

import "errors"

var (
	ErrConfigNotFound     = errors.New("video config not found")
	ErrInvalidConfig      = errors.New("invalid video config")
	ErrSessionNotFound    = errors.New("session not found")
	ErrPeersDisabled      = errors.New("peer connections are disabled")
	ErrSinkReleased       = errors.New("video sink released")
	ErrSystemNotAvailable = errors.New("video system not available")
	ErrPeerNotFound       = errors.New("peer connection not found")
	ErrInvalidRecording   = errors.New("invalid recording payload")
	ErrRecordingTooLarge  = errors.New("recording payload too large")
)
