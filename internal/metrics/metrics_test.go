package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHeartbeat(t *testing.T) {
	m := New()
	m.RecordHeartbeat(SourcePoll)
	m.RecordHeartbeat(SourcePoll)
	m.RecordHeartbeat(SourceSave)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HeartbeatsTotal.WithLabelValues(SourcePoll)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeartbeatsTotal.WithLabelValues(SourceSave)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HeartbeatsTotal.WithLabelValues(SourceBackup)))
}

func TestCountersAndGauge(t *testing.T) {
	m := New()
	m.RecordSinkFailure("exit")
	m.RecordSkip("too_soon")
	m.RecordTickError()
	m.SetIndexedFiles(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkFailuresTotal.WithLabelValues("exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTotal.WithLabelValues("too_soon")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickErrorsTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexedFiles))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHeartbeat(SourceBackup)
	m.ObserveSink(0.2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kicad_gtm_heartbeats_total{source="backup"} 1`)
	assert.Contains(t, string(body), "kicad_gtm_sink_duration_seconds_count 1")
}
