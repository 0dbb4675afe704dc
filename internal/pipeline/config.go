package pipeline

import "fmt"

// Defaults mirror the classic line processor: 80 column records, "++" → "^".
const (
	DefaultStopToken      = "STOP"
	DefaultChunkWidth     = 80
	DefaultMaxOutputLines = 50
	DefaultMaxLineLength  = 1000
	DefaultBufferCapacity = 50000
	DefaultMarker         = '+'
	DefaultReplacement    = '^'
	DefaultSeparator      = ' '
)

// Config holds the tunables of a pipeline run.
type Config struct {
	// StopToken is the input line that ends the run. It is never forwarded.
	StopToken string
	// ChunkWidth is the width, in runes, of every record except the last.
	ChunkWidth int
	// MaxOutputLines stops the Source once the Sink has emitted this many records.
	MaxOutputLines int
	// MaxLineLength bounds a single input line, in bytes.
	MaxLineLength int
	// BufferCapacity is the soft cap, in runes, of both accumulation buffers.
	BufferCapacity int
	// Marker is the rune whose adjacent pairs are collapsed.
	Marker rune
	// Replacement is written in place of each collapsed pair.
	Replacement rune
	// Separator replaces each input line terminator.
	Separator rune
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StopToken:      DefaultStopToken,
		ChunkWidth:     DefaultChunkWidth,
		MaxOutputLines: DefaultMaxOutputLines,
		MaxLineLength:  DefaultMaxLineLength,
		BufferCapacity: DefaultBufferCapacity,
		Marker:         DefaultMarker,
		Replacement:    DefaultReplacement,
		Separator:      DefaultSeparator,
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.StopToken == "":
		return fmt.Errorf("%w: stop token must not be empty", ErrInvalidConfig)
	case c.ChunkWidth <= 0:
		return fmt.Errorf("%w: chunk width must be positive, got %d", ErrInvalidConfig, c.ChunkWidth)
	case c.MaxOutputLines <= 0:
		return fmt.Errorf("%w: max output lines must be positive, got %d", ErrInvalidConfig, c.MaxOutputLines)
	case c.MaxLineLength <= 0:
		return fmt.Errorf("%w: max line length must be positive, got %d", ErrInvalidConfig, c.MaxLineLength)
	case c.BufferCapacity < c.ChunkWidth:
		// The sink only drains C below ChunkWidth; a smaller cap would stall the collapser.
		return fmt.Errorf("%w: buffer capacity %d is below chunk width %d", ErrInvalidConfig, c.BufferCapacity, c.ChunkWidth)
	case c.Marker == c.Replacement:
		return fmt.Errorf("%w: marker and replacement must differ, both are %q", ErrInvalidConfig, c.Marker)
	}
	return nil
}
