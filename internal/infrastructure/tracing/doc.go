/*
Package tracing records the lifetime of pipeline stages and status requests.

# Overview

Every pipeline run is one trace, keyed by its run ID. Each stage goroutine
opens a span when it starts and submits it when it exits; the collector
goroutine writes finished spans to the structured log.

# Usage

	tracer := tracing.New("lineproc", logger)
	defer tracer.Close()

	ctx = tracing.WithTraceID(ctx, tracing.TraceID(runID))
	span, ctx := tracer.StartSpan(ctx, "stage.source")
	span.SetTag("lines", "42")
	span.Finish()
	tracer.Submit(span)

	router.Use(tracing.HTTPMiddleware(tracer))

# Performance

Spans are buffered (1000) and logged asynchronously. Submit never blocks; a
full buffer drops the span with a warning.
*/
package tracing
