package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return New("test", zap.New(core)), logs
}

func TestStartSpanInheritsTrace(t *testing.T) {
	tracer, _ := newObservedTracer(t)
	defer tracer.Close()

	ctx := WithTraceID(context.Background(), "run_abc")
	parent, ctx := tracer.StartSpan(ctx, "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, TraceID("run_abc"), parent.TraceID)
	assert.Equal(t, TraceID("run_abc"), child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Empty(t, parent.ParentID)
}

func TestStartSpanNewTrace(t *testing.T) {
	tracer, _ := newObservedTracer(t)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")

	assert.NotEmpty(t, span.TraceID)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.Equal(t, span.SpanID, GetSpanID(ctx))
}

func TestCloseFlushesSpans(t *testing.T) {
	tracer, logs := newObservedTracer(t)

	ok, _ := tracer.StartSpan(context.Background(), "stage.source")
	ok.SetTag("lines", "3")
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "stage.sink")
	failed.SetError(errors.New("broken pipe"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, 1, logs.FilterMessage("span completed").FilterField(zap.String("tag.lines", "3")).Len())
	assert.Equal(t, 1, logs.FilterMessage("span completed with error").Len())
}

func TestSubmitAfterClose(t *testing.T) {
	tracer, logs := newObservedTracer(t)
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	span.Finish()

	assert.NotPanics(t, func() { tracer.Submit(span) })
	assert.Equal(t, 0, logs.Len())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer(t)

	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, "run_from_client")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	tracer.Close()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run_from_client", rec.Header().Get(TraceHeader))
	assert.NotEmpty(t, rec.Header().Get(SpanHeader))
	assert.Equal(t, 1, logs.FilterField(zap.String("tag.http.status", "200")).Len())
}
