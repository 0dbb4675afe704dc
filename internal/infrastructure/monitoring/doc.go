/*
Package monitoring provides Prometheus metrics for lineproc.

# Overview

Metrics implements pipeline.Recorder, so a Coordinator reports stage
activity straight into Prometheus collectors. All collectors are registered
on a caller supplied registry, never the global one.

# Metrics

- lines read, runes moved per boundary, marker pairs collapsed
- records emitted and their length
- buffer fill per boundary
- stage wait time and stage liveness
- runs by stop reason and run duration
- HTTP requests served by the status surface
- uptime, plus Go runtime and process collectors from NewRegistry

# Usage

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	p, err := pipeline.New(cfg, in, out, pipeline.WithRecorder(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
