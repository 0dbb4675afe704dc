// Package config provides 12-factor configuration for lineproc.
//
// Values are layered: built-in defaults, then an optional YAML or TOML file,
// then environment variables. The command line overrides all of them.
// A .env file in the working directory is loaded into the environment first.
//
// Configuration Sections:
//   - Pipeline: stop token, record width, caps and the marker characters
//   - Input/Output: paths, decompression and charset
//   - Logging: level and output format
//   - Metrics: address of the optional HTTP surface
//   - RateLimit: ingest pacing in lines per second
//
// Example Usage:
//
//	cfg, err := config.Load("lineproc.yaml")
//	pcfg, err := cfg.Pipeline.ToPipeline()
//
// Environment Variables:
//   - STOP_TOKEN, CHUNK_WIDTH, MAX_OUTPUT_LINES, MAX_LINE_LENGTH, BUFFER_CAPACITY
//   - MARKER_CHAR, REPLACEMENT_CHAR, SEPARATOR_CHAR
//   - INPUT_PATH, INPUT_DECOMPRESS, INPUT_ENCODING, OUTPUT_PATH
//   - LOG_LEVEL, LOG_DEV, METRICS_ADDR
//   - RATE_LIMIT_LPS, RATE_LIMIT_BURST
package config
