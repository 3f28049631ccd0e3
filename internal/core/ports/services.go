package ports

import (
	"context"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

type EventPublisher interface {
	Publish(event domain.SessionEvent)
}

// MetricsRecorder receives the service's operational counters.
type MetricsRecorder interface {
	RecordConfigLoad(fallback bool)
	RecordConfigSave(err error)
	RecordRecordingStored(kind domain.RecordingKind, bytes int)
	RecordSinkMounted()
	RecordSinkUnmounted()
	RecordTrackStop(err error)
	RecordSessionStarted(system domain.VideoSystem)
	RecordSessionEnded(duration time.Duration)
}

type VideoConfigService interface {
	Load(ctx context.Context) domain.VideoSystemConfig
	Save(ctx context.Context, cfg domain.VideoSystemConfig) (domain.VideoSystemConfig, error)
}

type RecordingService interface {
	Store(ctx context.Context, kind domain.RecordingKind, filename, payload string) (string, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

type SessionService interface {
	Start(ctx context.Context, system domain.VideoSystem) (domain.SessionSnapshot, error)
	Get(ctx context.Context, id domain.SessionID) (domain.SessionSnapshot, error)
	List(ctx context.Context) []domain.SessionSnapshot
	MountSink(ctx context.Context, id domain.SessionID) (VideoSink, error)
	UnmountSink(ctx context.Context, id domain.SessionID) error
	Connect(ctx context.Context, id domain.SessionID) (webrtc.SessionDescription, error)
	Accept(ctx context.Context, id domain.SessionID, answer webrtc.SessionDescription) error
	Release(ctx context.Context, id domain.SessionID) (bool, error)
	End(ctx context.Context, id domain.SessionID) error
}
