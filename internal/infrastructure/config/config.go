package config

import (
	"fmt"
	"unicode/utf8"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/lineproc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/lineproc/internal/pipeline"
)

// Config holds all application configuration.
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Input     InputConfig     `yaml:"input" toml:"input"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// PipelineConfig holds the stage parameters. Single characters are kept as
// strings so they read naturally from files and the environment.
type PipelineConfig struct {
	StopToken      string `envconfig:"STOP_TOKEN" yaml:"stop_token" toml:"stop_token"`
	ChunkWidth     int    `envconfig:"CHUNK_WIDTH" yaml:"chunk_width" toml:"chunk_width"`
	MaxOutputLines int    `envconfig:"MAX_OUTPUT_LINES" yaml:"max_output_lines" toml:"max_output_lines"`
	MaxLineLength  int    `envconfig:"MAX_LINE_LENGTH" yaml:"max_line_length" toml:"max_line_length"`
	BufferCapacity int    `envconfig:"BUFFER_CAPACITY" yaml:"buffer_capacity" toml:"buffer_capacity"`
	Marker         string `envconfig:"MARKER_CHAR" yaml:"marker" toml:"marker"`
	Replacement    string `envconfig:"REPLACEMENT_CHAR" yaml:"replacement" toml:"replacement"`
	Separator      string `envconfig:"SEPARATOR_CHAR" yaml:"separator" toml:"separator"`
}

// InputConfig selects and decodes the input stream. An empty path or "-"
// reads stdin. Decompress is "auto" or "none"; Encoding is "utf-8", "auto"
// or any charset label.
type InputConfig struct {
	Path       string `envconfig:"INPUT_PATH" yaml:"path" toml:"path"`
	Decompress string `envconfig:"INPUT_DECOMPRESS" yaml:"decompress" toml:"decompress"`
	Encoding   string `envconfig:"INPUT_ENCODING" yaml:"encoding" toml:"encoding"`
}

// OutputConfig selects the output stream. An empty path or "-" writes stdout.
type OutputConfig struct {
	Path string `envconfig:"OUTPUT_PATH" yaml:"path" toml:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// MetricsConfig holds the optional HTTP surface. An empty address disables it.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" yaml:"addr" toml:"addr"`
}

// RateLimitConfig paces ingestion. Zero lines per second means unlimited.
type RateLimitConfig struct {
	LinesPerSecond float64 `envconfig:"RATE_LIMIT_LPS" yaml:"lines_per_second" toml:"lines_per_second"`
	Burst          int     `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			StopToken:      pipeline.DefaultStopToken,
			ChunkWidth:     pipeline.DefaultChunkWidth,
			MaxOutputLines: pipeline.DefaultMaxOutputLines,
			MaxLineLength:  pipeline.DefaultMaxLineLength,
			BufferCapacity: pipeline.DefaultBufferCapacity,
			Marker:         string(pipeline.DefaultMarker),
			Replacement:    string(pipeline.DefaultReplacement),
			Separator:      string(pipeline.DefaultSeparator),
		},
		Input: InputConfig{
			Decompress: "auto",
			Encoding:   "utf-8",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			Burst: 1,
		},
	}
}

// Load builds configuration from defaults, then the optional config file,
// then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ToPipeline converts the section into a validated pipeline.Config.
func (p PipelineConfig) ToPipeline() (pipeline.Config, error) {
	marker, err := singleRune("marker", p.Marker)
	if err != nil {
		return pipeline.Config{}, err
	}
	replacement, err := singleRune("replacement", p.Replacement)
	if err != nil {
		return pipeline.Config{}, err
	}
	separator, err := singleRune("separator", p.Separator)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.Config{
		StopToken:      p.StopToken,
		ChunkWidth:     p.ChunkWidth,
		MaxOutputLines: p.MaxOutputLines,
		MaxLineLength:  p.MaxLineLength,
		BufferCapacity: p.BufferCapacity,
		Marker:         marker,
		Replacement:    replacement,
		Separator:      separator,
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

func singleRune(name, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: %s must be exactly one character, got %q", pipeline.ErrInvalidConfig, name, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ToLogging converts the section into a logging.Config.
func (l LogConfig) ToLogging() logging.Config {
	if l.Development {
		cfg := logging.DevelopmentConfig()
		cfg.Level = l.Level
		return cfg
	}
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	return cfg
}

// Limiter returns the ingest limiter, or nil when pacing is disabled.
func (r RateLimitConfig) Limiter() *rate.Limiter {
	if r.LinesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(r.LinesPerSecond), max(r.Burst, 1))
}
