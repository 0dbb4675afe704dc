package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/lineproc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/lineproc/internal/pipeline"
)

func newTestServer(t *testing.T) (*Server, *monitoring.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	logger := &logging.Logger{Logger: zaptest.NewLogger(t)}
	tracer := tracing.New("lineproc-test", logger.Logger)
	t.Cleanup(tracer.Close)

	stats := pipeline.Stats{RunID: "run_test", LinesRead: 3, Reason: pipeline.ReasonStopToken}
	srv := NewServer(Config{Addr: "127.0.0.1:0", Development: true}, Deps{
		Logger:   logger,
		Gatherer: reg,
		Metrics:  metrics,
		Tracer:   tracer,
		Status:   func() any { return stats },
	})
	return srv, metrics
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := get(t, srv.Handler(), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, w.Header().Get(tracing.TraceHeader))
}

func TestHealthReportsRunState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	done := make(chan struct{})
	srv := NewServer(Config{Development: true}, Deps{RunDone: done})

	state := func() any {
		w := get(t, srv.Handler(), "/health")
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body["run"]
	}

	assert.Equal(t, "running", state())
	close(done)
	assert.Equal(t, "finished", state())
}

func TestStatus(t *testing.T) {
	srv, metrics := newTestServer(t)
	metrics.LineRead()
	metrics.RecordEmitted(80)

	w := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var body struct {
		Run     pipeline.Stats             `json:"run"`
		Metrics monitoring.MetricsSnapshot `json:"metrics"`
		Uptime  string                     `json:"uptime"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run_test", body.Run.RunID)
	assert.Equal(t, 3, body.Run.LinesRead)
	assert.Equal(t, pipeline.ReasonStopToken, body.Run.Reason)
	assert.EqualValues(t, 1, body.Metrics.LinesRead)
	assert.EqualValues(t, 1, body.Metrics.RecordsEmitted)
	assert.NotEmpty(t, body.Uptime)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, metrics := newTestServer(t)
	metrics.LineRead()

	// Hit another route first so the HTTP counter has a sample.
	get(t, srv.Handler(), "/health")
	w := get(t, srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "lineproc_lines_read_total 1")
	assert.Contains(t, body, `lineproc_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestMinimalDeps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewServer(Config{Development: true}, Deps{})

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/health").Code)

	w := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body["run"])
	assert.NotContains(t, body, "metrics")
	assert.Contains(t, body, "uptime")
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Empty(t, srv.Addr())

	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start(), "second start is rejected")

	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
