package monitoring

import (
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports the service counters. It satisfies
// ports.MetricsRecorder so it can sit behind the in-memory metrics service.
type PrometheusCollector struct {
	// Counters
	configLoadsTotal    *prometheus.CounterVec
	configSavesTotal    *prometheus.CounterVec
	recordingsTotal     *prometheus.CounterVec
	recordingBytesTotal prometheus.Counter
	trackStopsTotal     *prometheus.CounterVec
	sessionsTotal       *prometheus.CounterVec

	// Gauges
	sinksMounted   prometheus.Gauge
	sessionsActive prometheus.Gauge

	// Histograms
	sessionDuration prometheus.Histogram
	recordingSize   prometheus.Histogram
}

// NewPrometheusCollector registers the collectors on reg, or on the default
// registerer when reg is nil.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		configLoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kalon_video_config_loads_total",
			Help: "Video config reads, by whether the default was served",
		}, []string{"source"}),

		configSavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kalon_video_config_saves_total",
			Help: "Video config writes, by result",
		}, []string{"result"}),

		recordingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kalon_recordings_stored_total",
			Help: "Recordings persisted, by endpoint",
		}, []string{"kind"}),

		recordingBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kalon_recording_bytes_total",
			Help: "Total decoded bytes of persisted recordings",
		}),

		trackStopsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kalon_track_stops_total",
			Help: "Device track stop attempts, by result",
		}, []string{"result"}),

		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kalon_sessions_started_total",
			Help: "Call sessions started, by video system",
		}, []string{"system"}),

		sinksMounted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kalon_video_sinks_mounted",
			Help: "Video sinks currently mounted",
		}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kalon_sessions_active",
			Help: "Call sessions currently open",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kalon_session_duration_seconds",
			Help:    "Duration of call sessions",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}),

		recordingSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kalon_recording_size_bytes",
			Help:    "Decoded size of persisted recordings",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
	}
}

func (p *PrometheusCollector) RecordConfigLoad(fallback bool) {
	source := "stored"
	if fallback {
		source = "default"
	}
	p.configLoadsTotal.WithLabelValues(source).Inc()
}

func (p *PrometheusCollector) RecordConfigSave(err error) {
	p.configSavesTotal.WithLabelValues(result(err)).Inc()
}

func (p *PrometheusCollector) RecordRecordingStored(kind domain.RecordingKind, bytes int) {
	p.recordingsTotal.WithLabelValues(string(kind)).Inc()
	p.recordingBytesTotal.Add(float64(bytes))
	p.recordingSize.Observe(float64(bytes))
}

func (p *PrometheusCollector) RecordSinkMounted() {
	p.sinksMounted.Inc()
}

func (p *PrometheusCollector) RecordSinkUnmounted() {
	p.sinksMounted.Dec()
}

func (p *PrometheusCollector) RecordTrackStop(err error) {
	p.trackStopsTotal.WithLabelValues(result(err)).Inc()
}

func (p *PrometheusCollector) RecordSessionStarted(system domain.VideoSystem) {
	p.sessionsTotal.WithLabelValues(string(system)).Inc()
	p.sessionsActive.Inc()
}

func (p *PrometheusCollector) RecordSessionEnded(duration time.Duration) {
	p.sessionsActive.Dec()
	p.sessionDuration.Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
