package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction(2)
	m.ObservePrediction(2)
	m.ObservePrediction(7)
	m.ReadTimeouts.Inc()
	m.Reconnects.WithLabelValues("success").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects.WithLabelValues("success")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.ReadTimeouts.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReadTimeouts))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.CycleDuration.Observe(0.002)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "myolink_cycle_processing_seconds_count 1"), string(body))
}
