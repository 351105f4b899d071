package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sheetdrip/internal/domain"
)

func TestObserveBatch(t *testing.T) {
	m := New()
	m.ObserveBatch("success", 3, 0.2)
	m.ObserveBatch("failure", 2, 0.1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesTotal.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.URLsDelivered))
}

func TestSetQueueAndRunning(t *testing.T) {
	m := New()
	m.SetQueue(domain.Stats{Pending: 4, Processing: 1, Completed: 2, Failed: 1})
	m.SetRunning(true)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueueItems.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueItems.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running))

	m.SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Running))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBatch("success", 1, 0)
		m.SetQueue(domain.Stats{})
		m.SetRunning(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetRunning(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheetdrip_scheduler_running 1")
}
