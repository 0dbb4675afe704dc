// Package server exposes a running pipeline over HTTP.
//
// Routes:
//   - GET /health: liveness and uptime
//   - GET /status: the current run snapshot plus counters, JSON encoded with sonic
//   - GET /metrics: Prometheus exposition of the private registry
//
// The server is optional. lineproc starts it only when METRICS_ADDR (or
// -metrics-addr) is set, and shuts it down once the run has finished.
//
// Example Usage:
//
//	srv := server.NewServer(server.Config{Addr: ":9100"}, server.Deps{
//	    Logger:   logger,
//	    Gatherer: reg,
//	    Metrics:  metrics,
//	    Status:   func() any { return p.Snapshot() },
//	})
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
package server
