package services

import (
	"sync"
	"time"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/ports"
)

// MetricsSnapshot is the in-process view of the service counters.
type MetricsSnapshot struct {
	ConfigLoads      int64                        `json:"config_loads"`
	ConfigFallbacks  int64                        `json:"config_fallbacks"`
	ConfigSaves      int64                        `json:"config_saves"`
	ConfigSaveErrors int64                        `json:"config_save_errors"`
	RecordingsStored map[domain.RecordingKind]int `json:"recordings_stored"`
	RecordingBytes   int64                        `json:"recording_bytes"`
	SinksMounted     int64                        `json:"sinks_mounted"`
	ActiveSinks      int64                        `json:"active_sinks"`
	TracksStopped    int64                        `json:"tracks_stopped"`
	TrackStopErrors  int64                        `json:"track_stop_errors"`
	SessionsStarted  map[domain.VideoSystem]int   `json:"sessions_started"`
	ActiveSessions   int64                        `json:"active_sessions"`
	AverageSession   time.Duration                `json:"average_session_ns"`
}

// MetricsService counts service events in memory and forwards each one to
// an optional exporter such as the Prometheus collector.
type MetricsService struct {
	mu       sync.RWMutex
	snap     MetricsSnapshot
	ended    int64
	totalDur time.Duration

	exporter ports.MetricsRecorder
}

func NewMetricsService(exporter ports.MetricsRecorder) *MetricsService {
	return &MetricsService{
		snap: MetricsSnapshot{
			RecordingsStored: make(map[domain.RecordingKind]int),
			SessionsStarted:  make(map[domain.VideoSystem]int),
		},
		exporter: exporter,
	}
}

func (m *MetricsService) RecordConfigLoad(fallback bool) {
	m.mu.Lock()
	m.snap.ConfigLoads++
	if fallback {
		m.snap.ConfigFallbacks++
	}
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordConfigLoad(fallback)
	}
}

func (m *MetricsService) RecordConfigSave(err error) {
	m.mu.Lock()
	if err != nil {
		m.snap.ConfigSaveErrors++
	} else {
		m.snap.ConfigSaves++
	}
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordConfigSave(err)
	}
}

func (m *MetricsService) RecordRecordingStored(kind domain.RecordingKind, bytes int) {
	m.mu.Lock()
	m.snap.RecordingsStored[kind]++
	m.snap.RecordingBytes += int64(bytes)
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordRecordingStored(kind, bytes)
	}
}

func (m *MetricsService) RecordSinkMounted() {
	m.mu.Lock()
	m.snap.SinksMounted++
	m.snap.ActiveSinks++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordSinkMounted()
	}
}

func (m *MetricsService) RecordSinkUnmounted() {
	m.mu.Lock()
	if m.snap.ActiveSinks > 0 {
		m.snap.ActiveSinks--
	}
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordSinkUnmounted()
	}
}

func (m *MetricsService) RecordTrackStop(err error) {
	m.mu.Lock()
	if err != nil {
		m.snap.TrackStopErrors++
	} else {
		m.snap.TracksStopped++
	}
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordTrackStop(err)
	}
}

func (m *MetricsService) RecordSessionStarted(system domain.VideoSystem) {
	m.mu.Lock()
	m.snap.SessionsStarted[system]++
	m.snap.ActiveSessions++
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordSessionStarted(system)
	}
}

func (m *MetricsService) RecordSessionEnded(duration time.Duration) {
	m.mu.Lock()
	if m.snap.ActiveSessions > 0 {
		m.snap.ActiveSessions--
	}
	m.ended++
	m.totalDur += duration
	m.snap.AverageSession = m.totalDur / time.Duration(m.ended)
	m.mu.Unlock()

	if m.exporter != nil {
		m.exporter.RecordSessionEnded(duration)
	}
}

// Snapshot returns a copy of the current counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.snap
	out.RecordingsStored = make(map[domain.RecordingKind]int, len(m.snap.RecordingsStored))
	for k, v := range m.snap.RecordingsStored {
		out.RecordingsStored[k] = v
	}
	out.SessionsStarted = make(map[domain.VideoSystem]int, len(m.snap.SessionsStarted))
	for k, v := range m.snap.SessionsStarted {
		out.SessionsStarted[k] = v
	}
	return out
}

type noopMetrics struct{}

func (noopMetrics) RecordConfigLoad(bool) {}
func (noopMetrics) RecordConfigSave(error) {}
func (noopMetrics) RecordRecordingStored(domain.RecordingKind, int) {}
func (noopMetrics) RecordSinkMounted() {}
func (noopMetrics) RecordSinkUnmounted() {}
func (noopMetrics) RecordTrackStop(error) {}
func (noopMetrics) RecordSessionStarted(domain.VideoSystem) {}
func (noopMetrics) RecordSessionEnded(time.Duration) {}

type noopEvents struct{}

func (noopEvents) Publish(domain.SessionEvent) {}

func metricsOrNoop(m ports.MetricsRecorder) ports.MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func eventsOrNoop(e ports.EventPublisher) ports.EventPublisher {
	if e == nil {
		return noopEvents{}
	}
	return e
}
