package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	t.Cleanup(m.Close)
	return m
}

func TestRecordPublish(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordPublish("raw", 1024, 3*time.Millisecond)
	m.RecordPublish("raw", 2048, time.Millisecond)
	m.RecordPublish("pos", 64, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SamplesPublished.WithLabelValues("raw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SamplesPublished.WithLabelValues("pos")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.PayloadBytes.WithLabelValues("raw")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalPublished)
	assert.InDelta(t, 0.004, snap.PublishWait, 1e-9)
}

func TestRecordRenderCountsErrors(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRender("snapshot", "ok")
	m.RecordRender("snapshot", "error")
	m.RecordRender("snapshot", "skipped")

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRenders)
	assert.Equal(t, int64(1), snap.RenderErrors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Renders.WithLabelValues("snapshot", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordPublish("raw", 1, time.Millisecond)
		m.RecordConsume("raw", time.Millisecond)
		m.SetSourcesActive("raw", 2)
		m.RecordAttachError("raw", "capacity")
		m.RecordProcess("posidet", time.Millisecond)
		m.RecordRender("ascii", "ok")
		m.RecordHTTPRequest("GET", "/healthz", "200", time.Millisecond)
		NewTimer(m, "posidet").Stop()
		m.Close()
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics(t)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/healthz", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, int64(1), m.Snapshot().TotalRequests)
}

func TestNewRegistryGathers(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	defer m.Close()

	m.RecordPublish("raw", 1, 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["shmflow_samples_published_total"])
	assert.True(t, names["go_goroutines"])
}
