package monitoring

import (
	"errors"
	"testing"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.RecordConfigLoad(true)
	p.RecordConfigLoad(false)
	p.RecordConfigLoad(false)
	p.RecordConfigSave(errors.New("disk full"))
	p.RecordRecordingStored(domain.RecordingFromUpload, 2048)
	p.RecordSinkMounted()
	p.RecordSinkMounted()
	p.RecordSinkUnmounted()
	p.RecordTrackStop(nil)
	p.RecordSessionStarted(domain.SystemHighmesh)
	p.RecordSessionEnded(time.Minute)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.configLoadsTotal.WithLabelValues("default")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.configLoadsTotal.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.configSavesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.recordingsTotal.WithLabelValues("upload")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(p.recordingBytesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sinksMounted))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trackStopsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sessionsTotal.WithLabelValues("highmesh")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.sessionsActive))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}
