package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/lineproc/internal/pipeline"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	// Pipeline config
	assert.Equal(t, "STOP", cfg.Pipeline.StopToken)
	assert.Equal(t, 80, cfg.Pipeline.ChunkWidth)
	assert.Equal(t, 50, cfg.Pipeline.MaxOutputLines)
	assert.Equal(t, "+", cfg.Pipeline.Marker)
	assert.Equal(t, "^", cfg.Pipeline.Replacement)
	assert.Equal(t, " ", cfg.Pipeline.Separator)

	// Input config
	assert.Equal(t, "auto", cfg.Input.Decompress)
	assert.Equal(t, "utf-8", cfg.Input.Encoding)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Metrics and rate limit are off
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Nil(t, cfg.RateLimit.Limiter())
}

func TestDefaultConvertsToPipeline(t *testing.T) {
	pcfg, err := Default().Pipeline.ToPipeline()
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultConfig(), pcfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"STOP_TOKEN":       "END",
		"CHUNK_WIDTH":      "40",
		"MAX_OUTPUT_LINES": "7",
		"SEPARATOR_CHAR":   "|",
		"INPUT_PATH":       "in.txt.gz",
		"INPUT_ENCODING":   "auto",
		"OUTPUT_PATH":      "out.txt",
		"LOG_LEVEL":        "debug",
		"LOG_DEV":          "true",
		"METRICS_ADDR":     ":9100",
		"RATE_LIMIT_LPS":   "2.5",
		"RATE_LIMIT_BURST": "4",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "END", cfg.Pipeline.StopToken)
	assert.Equal(t, 40, cfg.Pipeline.ChunkWidth)
	assert.Equal(t, 7, cfg.Pipeline.MaxOutputLines)
	assert.Equal(t, "|", cfg.Pipeline.Separator)
	assert.Equal(t, "+", cfg.Pipeline.Marker, "unset values keep their defaults")

	assert.Equal(t, "in.txt.gz", cfg.Input.Path)
	assert.Equal(t, "auto", cfg.Input.Encoding)
	assert.Equal(t, "out.txt", cfg.Output.Path)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)

	limiter := cfg.RateLimit.Limiter()
	require.NotNil(t, limiter)
	assert.InDelta(t, 2.5, float64(limiter.Limit()), 1e-9)
	assert.Equal(t, 4, limiter.Burst())
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("CHUNK_WIDTH", "wide")

	_, err := Load("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_WIDTH")
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "lineproc.yaml",
			content: `pipeline:
  chunk_width: 20
  marker: "*"
logging:
  level: warn
`,
		},
		{
			name: "toml",
			file: "lineproc.toml",
			content: `[pipeline]
chunk_width = 20
marker = "*"

[logging]
level = "warn"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 20, cfg.Pipeline.ChunkWidth)
			assert.Equal(t, "*", cfg.Pipeline.Marker)
			assert.Equal(t, "warn", cfg.Logging.Level)
			assert.Equal(t, "STOP", cfg.Pipeline.StopToken, "keys absent from the file keep defaults")
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "lineproc.yml", "pipeline:\n  chunk_width: 20\n")
	t.Setenv("CHUNK_WIDTH", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Pipeline.ChunkWidth)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, "bad.toml", "[pipeline]\nchunk_widht = 3\n")
		assert.Error(t, LoadFile(path, Default()))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "lineproc.json", "{}")
		assert.ErrorIs(t, LoadFile(path, Default()), ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.ErrorIs(t, LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Default()), os.ErrNotExist)
	})
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "CHUNK_WIDTH=12\nSTOP_TOKEN=QUIT\n")
	t.Setenv("STOP_TOKEN", "HALT")
	// godotenv sets CHUNK_WIDTH directly; register it for cleanup.
	t.Setenv("CHUNK_WIDTH", "")
	require.NoError(t, os.Unsetenv("CHUNK_WIDTH"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Pipeline.ChunkWidth)
	assert.Equal(t, "HALT", cfg.Pipeline.StopToken, "existing variables win")
}

func TestToPipeline(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{name: "empty marker", mutate: func(p *PipelineConfig) { p.Marker = "" }},
		{name: "two rune separator", mutate: func(p *PipelineConfig) { p.Separator = "--" }},
		{name: "empty replacement", mutate: func(p *PipelineConfig) { p.Replacement = "" }},
		{name: "zero width", mutate: func(p *PipelineConfig) { p.ChunkWidth = 0 }},
		{name: "marker equals replacement", mutate: func(p *PipelineConfig) { p.Replacement = "+" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default().Pipeline
			tt.mutate(&p)

			_, err := p.ToPipeline()
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
		})
	}

	t.Run("multibyte runes", func(t *testing.T) {
		p := Default().Pipeline
		p.Marker = "é"
		p.Replacement = "ß"

		pcfg, err := p.ToPipeline()
		require.NoError(t, err)
		assert.Equal(t, 'é', pcfg.Marker)
		assert.Equal(t, 'ß', pcfg.Replacement)
	})
}

func TestToLogging(t *testing.T) {
	lc := LogConfig{Level: "warn"}.ToLogging()
	assert.Equal(t, "warn", lc.Level)
	assert.False(t, lc.Development)
	assert.Equal(t, []string{"stderr"}, lc.OutputPaths)

	dev := LogConfig{Level: "debug", Development: true}.ToLogging()
	assert.True(t, dev.Development)
}
