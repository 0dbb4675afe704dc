package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lineproc"

// Metrics holds all Prometheus metrics. It implements pipeline.Recorder.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	LinesTotal   prometheus.Counter
	RunesTotal   *prometheus.CounterVec
	PairsTotal   prometheus.Counter
	RecordsTotal prometheus.Counter
	RecordLength prometheus.Histogram
	BufferRunes  *prometheus.GaugeVec
	StageWait    *prometheus.HistogramVec
	StageActive  *prometheus.GaugeVec
	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for the status endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON output
type MetricsSnapshot struct {
	LinesRead      int64 `json:"lines_read"`
	RecordsEmitted int64 `json:"records_emitted"`
	PairsCollapsed int64 `json:"pairs_collapsed"`
	ActiveStages   int64 `json:"active_stages"`
	TotalRequests  int64 `json:"total_requests"`
	TotalErrors    int64 `json:"total_errors"`
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	// HTTP metrics
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	m.LinesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Input lines accepted by the source stage",
		},
	)
	m.RunesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runes_moved_total",
			Help:      "Characters handed across each stage boundary",
		},
		[]string{"boundary"},
	)
	m.PairsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marker_pairs_collapsed_total",
			Help:      "Adjacent marker pairs replaced by the collapser",
		},
	)
	m.RecordsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Output records written by the sink",
		},
	)
	m.RecordLength = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "record_length_runes",
			Help:      "Length of emitted records in characters",
			Buckets:   []float64{1, 10, 20, 40, 80, 160, 320},
		},
	)
	m.BufferRunes = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_runes",
			Help:      "Characters currently held at each boundary",
		},
		[]string{"boundary"},
	)
	m.StageWait = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_wait_seconds",
			Help:      "Time stages spend blocked on a condition",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1, 10},
		},
		[]string{"stage"},
	)
	m.StageActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_active",
			Help:      "1 while a stage goroutine is running",
		},
		[]string{"stage"},
	)
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by stop reason",
		},
		[]string{"reason"},
	)
	m.RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// LineRead counts one accepted input line.
func (m *Metrics) LineRead() {
	m.LinesTotal.Inc()
	m.mu.Lock()
	m.snapshot.LinesRead++
	m.mu.Unlock()
}

// RunesMoved counts characters handed across a boundary.
func (m *Metrics) RunesMoved(boundary string, n int) {
	m.RunesTotal.WithLabelValues(boundary).Add(float64(n))
}

// PairsCollapsed counts marker pairs replaced in one batch.
func (m *Metrics) PairsCollapsed(n int) {
	if n == 0 {
		return
	}
	m.PairsTotal.Add(float64(n))
	m.mu.Lock()
	m.snapshot.PairsCollapsed += int64(n)
	m.mu.Unlock()
}

// RecordEmitted counts one written record of the given length.
func (m *Metrics) RecordEmitted(runes int) {
	m.RecordsTotal.Inc()
	m.RecordLength.Observe(float64(runes))
	m.mu.Lock()
	m.snapshot.RecordsEmitted++
	m.mu.Unlock()
}

// BufferDepth sets the current fill of a boundary.
func (m *Metrics) BufferDepth(boundary string, n int) {
	m.BufferRunes.WithLabelValues(boundary).Set(float64(n))
}

// StageWaited observes a completed wait.
func (m *Metrics) StageWaited(stage string, d time.Duration) {
	m.StageWait.WithLabelValues(stage).Observe(d.Seconds())
}

// StageState flips the active gauge of a stage.
func (m *Metrics) StageState(stage string, active bool) {
	delta := int64(-1)
	if active {
		m.StageActive.WithLabelValues(stage).Set(1)
		delta = 1
	} else {
		m.StageActive.WithLabelValues(stage).Set(0)
	}
	m.mu.Lock()
	m.snapshot.ActiveStages += delta
	m.mu.Unlock()
}

// RunFinished records the outcome of a run.
func (m *Metrics) RunFinished(reason string, d time.Duration) {
	if reason == "" {
		reason = "unknown"
	}
	m.RunsTotal.WithLabelValues(reason).Inc()
	m.RunDuration.Observe(d.Seconds())
}
