package services

import (
	"errors"
	"testing"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestMetricsService_Counters(t *testing.T) {
	exporter := NewMetricsService(nil)
	m := NewMetricsService(exporter)

	m.RecordConfigLoad(false)
	m.RecordConfigLoad(true)
	m.RecordConfigSave(nil)
	m.RecordConfigSave(errors.New("boom"))
	m.RecordRecordingStored(domain.RecordingFromCall, 100)
	m.RecordSinkMounted()
	m.RecordSinkMounted()
	m.RecordSinkUnmounted()
	m.RecordTrackStop(nil)
	m.RecordTrackStop(errors.New("busy"))
	m.RecordSessionStarted(domain.SystemHighmesh)
	m.RecordSessionEnded(2 * time.Second)
	m.RecordSessionStarted(domain.SystemHighmesh)
	m.RecordSessionEnded(4 * time.Second)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.ConfigLoads)
	assert.Equal(t, int64(1), snap.ConfigFallbacks)
	assert.Equal(t, int64(1), snap.ConfigSaves)
	assert.Equal(t, int64(1), snap.ConfigSaveErrors)
	assert.Equal(t, int64(100), snap.RecordingBytes)
	assert.Equal(t, int64(2), snap.SinksMounted)
	assert.Equal(t, int64(1), snap.ActiveSinks)
	assert.Equal(t, int64(1), snap.TracksStopped)
	assert.Equal(t, int64(1), snap.TrackStopErrors)
	assert.Equal(t, 2, snap.SessionsStarted[domain.SystemHighmesh])
	assert.Zero(t, snap.ActiveSessions)
	assert.Equal(t, 3*time.Second, snap.AverageSession)

	// every call reached the exporter too
	assert.Equal(t, snap, exporter.Snapshot())
}

func TestMetricsService_SnapshotIsACopy(t *testing.T) {
	m := NewMetricsService(nil)
	m.RecordSessionStarted(domain.SystemGoogleMeet)

	snap := m.Snapshot()
	snap.SessionsStarted[domain.SystemGoogleMeet] = 99

	assert.Equal(t, 1, m.Snapshot().SessionsStarted[domain.SystemGoogleMeet])
}
