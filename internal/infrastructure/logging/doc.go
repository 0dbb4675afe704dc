// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: colored console output at debug level
//
// Output defaults to stderr. Standard output carries the pipeline's records
// and must stay clean.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("pipeline starting", zap.Int("chunk_width", 80))
//	logger.Error("write failed", zap.Error(err))
package logging
