package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/lineproc/internal/pipeline"
)

func TestRecorderMethods(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.LineRead()
	m.LineRead()
	m.RunesMoved(pipeline.BoundaryNormalized, 6)
	m.RunesMoved(pipeline.BoundaryCollapsed, 5)
	m.PairsCollapsed(1)
	m.PairsCollapsed(0)
	m.RecordEmitted(80)
	m.BufferDepth(pipeline.BoundaryCollapsed, 3)
	m.StageWaited(pipeline.StageSink, time.Millisecond)
	m.StageState(pipeline.StageSink, true)
	m.RunFinished(string(pipeline.ReasonStopToken), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LinesTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.RunesTotal.WithLabelValues(pipeline.BoundaryNormalized)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RunesTotal.WithLabelValues(pipeline.BoundaryCollapsed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BufferRunes.WithLabelValues(pipeline.BoundaryCollapsed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageActive.WithLabelValues(pipeline.StageSink)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("stop_token")))

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.LinesRead)
	assert.EqualValues(t, 1, snap.RecordsEmitted)
	assert.EqualValues(t, 1, snap.PairsCollapsed)
	assert.EqualValues(t, 1, snap.ActiveStages)

	m.StageState(pipeline.StageSink, false)
	assert.Zero(t, testutil.ToFloat64(m.StageActive.WithLabelValues(pipeline.StageSink)))
	assert.Zero(t, m.Snapshot().ActiveStages)
}

func TestRunFinishedWithoutReason(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RunFinished("", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("unknown")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	// Registering twice on the default registry would panic.
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.LineRead()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.LinesTotal))
	assert.Zero(t, testutil.ToFloat64(b.LinesTotal))
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	NewMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "go_goroutines")
	assert.Contains(t, names, "lineproc_uptime_seconds")
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/status", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/status", "/status", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/status", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.TotalRequests)
	assert.EqualValues(t, 1, snap.TotalErrors)
}

func TestMetricNamesArePrefixed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.LineRead()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.True(t, strings.HasPrefix(mf.GetName(), namespace+"_"), mf.GetName())
	}
}
