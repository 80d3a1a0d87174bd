package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Channel metrics
	SamplesPublished *prometheus.CounterVec
	SamplesConsumed  *prometheus.CounterVec
	PayloadBytes     *prometheus.GaugeVec
	SourcesActive    *prometheus.GaugeVec
	AttachErrors     *prometheus.CounterVec

	// Back-pressure metrics
	PublishWait *prometheus.HistogramVec
	GetWait     *prometheus.HistogramVec

	// Component metrics
	ProcessDuration *prometheus.HistogramVec

	// Viewer metrics
	Renders *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	done      chan struct{}
	closeOnce sync.Once

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalPublished int64
	TotalConsumed  int64
	TotalRenders   int64
	RenderErrors   int64
	TotalRequests  int64
	PublishWait    float64 // sum of back-pressure wait in seconds
	Uptime         float64
}

var waitBuckets = []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// NewMetrics creates a new metrics collector registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		done:      make(chan struct{}),

		// Channel metrics
		SamplesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmflow_samples_published_total",
				Help: "Total number of samples published to a channel",
			},
			[]string{"channel"},
		),
		SamplesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmflow_samples_consumed_total",
				Help: "Total number of samples read from a channel",
			},
			[]string{"channel"},
		),
		PayloadBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shmflow_payload_bytes",
				Help: "Size of the most recently published payload",
			},
			[]string{"channel"},
		),
		SourcesActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shmflow_sources_active",
				Help: "Number of sources attached to a channel as seen at the last publish",
			},
			[]string{"channel"},
		),
		AttachErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmflow_attach_errors_total",
				Help: "Total number of failed sink binds and source connects",
			},
			[]string{"channel", "reason"},
		),

		// Back-pressure metrics
		PublishWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shmflow_publish_wait_seconds",
				Help:    "Time a sink waited for all sources to release the previous sample",
				Buckets: waitBuckets,
			},
			[]string{"channel"},
		),
		GetWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shmflow_get_wait_seconds",
				Help:    "Time a source waited for a new sample",
				Buckets: waitBuckets,
			},
			[]string{"channel"},
		),

		// Component metrics
		ProcessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shmflow_process_duration_seconds",
				Help:    "Duration of one component process step",
				Buckets: waitBuckets,
			},
			[]string{"component"},
		),

		// Viewer metrics
		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmflow_renders_total",
				Help: "Total number of render attempts by outcome",
			},
			[]string{"viewer", "status"},
		),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shmflow_http_requests_total",
				Help: "Total number of diagnostics HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shmflow_http_request_duration_seconds",
				Help:    "Diagnostics HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shmflow_uptime_seconds",
				Help: "Component uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.done:
			return
		}
	}
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	if m == nil {
		return
	}
	m.closeOnce.Do(func() { close(m.done) })
}

// RecordPublish records one sample published to channel
func (m *Metrics) RecordPublish(channel string, payload int, wait time.Duration) {
	if m == nil {
		return
	}
	m.SamplesPublished.WithLabelValues(channel).Inc()
	m.PayloadBytes.WithLabelValues(channel).Set(float64(payload))
	m.PublishWait.WithLabelValues(channel).Observe(wait.Seconds())

	m.mu.Lock()
	m.snapshot.TotalPublished++
	m.snapshot.PublishWait += wait.Seconds()
	m.mu.Unlock()
}

// RecordConsume records one sample read from channel
func (m *Metrics) RecordConsume(channel string, wait time.Duration) {
	if m == nil {
		return
	}
	m.SamplesConsumed.WithLabelValues(channel).Inc()
	m.GetWait.WithLabelValues(channel).Observe(wait.Seconds())

	m.mu.Lock()
	m.snapshot.TotalConsumed++
	m.mu.Unlock()
}

// SetSourcesActive sets the number of sources attached to channel
func (m *Metrics) SetSourcesActive(channel string, count int) {
	if m == nil {
		return
	}
	m.SourcesActive.WithLabelValues(channel).Set(float64(count))
}

// RecordAttachError records a failed bind or connect
func (m *Metrics) RecordAttachError(channel, reason string) {
	if m == nil {
		return
	}
	m.AttachErrors.WithLabelValues(channel, reason).Inc()
}

// RecordProcess records the duration of one component step
func (m *Metrics) RecordProcess(component string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProcessDuration.WithLabelValues(component).Observe(duration.Seconds())
}

// RecordRender records a render attempt outcome ("ok", "error", "skipped")
func (m *Metrics) RecordRender(viewer, status string) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(viewer, status).Inc()

	m.mu.Lock()
	m.snapshot.TotalRenders++
	if status == "error" {
		m.snapshot.RenderErrors++
	}
	m.mu.Unlock()
}

// RecordHTTPRequest records a diagnostics HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Uptime = time.Since(m.startTime).Seconds()
	return snap
}
