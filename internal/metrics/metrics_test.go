package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUnitEmitted(t *testing.T) {
	initialUnits := testutil.ToFloat64(unitsEmittedTotal.WithLabelValues("ivf", "vp9"))
	initialBytes := testutil.ToFloat64(bytesEmittedTotal.WithLabelValues("ivf", "vp9"))

	RecordUnitEmitted("ivf", "vp9", 1024)
	RecordUnitEmitted("ivf", "vp9", 512)

	assert.Equal(t, initialUnits+2, testutil.ToFloat64(unitsEmittedTotal.WithLabelValues("ivf", "vp9")))
	assert.Equal(t, initialBytes+1536, testutil.ToFloat64(bytesEmittedTotal.WithLabelValues("ivf", "vp9")))
}

func TestSessionGauge(t *testing.T) {
	initial := testutil.ToFloat64(sessionsActive)

	SessionStarted()
	SessionStarted()
	assert.Equal(t, initial+2, testutil.ToFloat64(sessionsActive))

	SessionEnded()
	assert.Equal(t, initial+1, testutil.ToFloat64(sessionsActive))
	SessionEnded()
	assert.Equal(t, initial, testutil.ToFloat64(sessionsActive))
}

func TestErrorCounters(t *testing.T) {
	tests := []struct {
		name    string
		counter prometheus.Counter
		inc     func()
	}{
		{
			name:    "malformed",
			counter: malformedUnitsTotal.WithLabelValues("obu"),
			inc:     func() { IncrementMalformedUnits("obu") },
		},
		{
			name:    "terminal",
			counter: terminalFailuresTotal.WithLabelValues("ivf", "zero_length"),
			inc:     func() { IncrementTerminalFailures("ivf", "zero_length") },
		},
		{
			name:    "dropped",
			counter: unitsDroppedTotal.WithLabelValues("annexb", "no_output"),
			inc:     func() { RecordUnitDropped("annexb", "no_output") },
		},
		{
			name:    "config",
			counter: configChangesTotal.WithLabelValues("av1"),
			inc:     func() { IncrementConfigChanges("av1") },
		},
		{
			name:    "restarts",
			counter: timestampRestartsTotal.WithLabelValues("ivf"),
			inc:     func() { IncrementTimestampRestarts("ivf") },
		},
		{
			name:    "cache",
			counter: indexCacheTotal.WithLabelValues("hit"),
			inc:     func() { IncrementIndexCache("hit") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := testutil.ToFloat64(tt.counter)
			tt.inc()
			tt.inc()
			assert.Equal(t, initial+2, testutil.ToFloat64(tt.counter))
		})
	}
}

func TestRecordIndexBuild(t *testing.T) {
	RecordIndexBuild("obu", "ok", 0.25)

	metric := &dto.Metric{}
	observer := indexBuildSeconds.WithLabelValues("obu", "ok")
	require.NoError(t, observer.(prometheus.Histogram).Write(metric))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleCount(), uint64(1))
	assert.GreaterOrEqual(t, metric.GetHistogram().GetSampleSum(), 0.25)
}

func TestRecordHTTPRequest(t *testing.T) {
	tests := []struct {
		status int
		class  string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{422, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			c := httpRequestsTotal.WithLabelValues("POST", "/api/v1/probe", tt.class)
			initial := testutil.ToFloat64(c)
			RecordHTTPRequest("POST", "/api/v1/probe", tt.status, 0.01)
			assert.Equal(t, initial+1, testutil.ToFloat64(c))
		})
	}
}

func TestConcurrentMetricsUpdates(t *testing.T) {
	initial := testutil.ToFloat64(unitsEmittedTotal.WithLabelValues("iamf", "iamf"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordUnitEmitted("iamf", "iamf", 10)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, initial+1000, testutil.ToFloat64(unitsEmittedTotal.WithLabelValues("iamf", "iamf")))
}
