package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/lineproc/internal/infrastructure/config"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/lineproc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/lineproc/internal/pipeline"
	"github.com/GriffinCanCode/lineproc/internal/server"
	"github.com/GriffinCanCode/lineproc/internal/stream"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// After the first signal a second one gets the default behaviour and
	// kills the process, even while a read on stdin is still blocked.
	context.AfterFunc(ctx, stop)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// flags mirrors the config fields that can be overridden on the command line.
type flags struct {
	configPath string

	input, output        string
	decompress, encoding string

	stop                                      string
	width, maxLines, maxLineLength, bufferCap int
	marker, replacement, separator            string

	logLevel    string
	dev         bool
	metricsAddr string
	linger      time.Duration

	rate  float64
	burst int
}

func newFlagSet(stderr io.Writer, f *flags) *flag.FlagSet {
	fs := flag.NewFlagSet("lineproc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "YAML or TOML config file")
	fs.StringVar(&f.input, "input", "", "input file (default stdin)")
	fs.StringVar(&f.output, "output", "", "output file (default stdout)")
	fs.StringVar(&f.decompress, "decompress", stream.DecompressAuto, "input decompression: auto or none")
	fs.StringVar(&f.encoding, "encoding", stream.EncodingUTF8, "input charset: utf-8, auto or a label")

	fs.StringVar(&f.stop, "stop", pipeline.DefaultStopToken, "line that ends the input")
	fs.IntVar(&f.width, "width", pipeline.DefaultChunkWidth, "characters per output record")
	fs.IntVar(&f.maxLines, "max-lines", pipeline.DefaultMaxOutputLines, "stop reading after this many records")
	fs.IntVar(&f.maxLineLength, "max-line-length", pipeline.DefaultMaxLineLength, "longest accepted input line in bytes")
	fs.IntVar(&f.bufferCap, "buffer", pipeline.DefaultBufferCapacity, "characters held per boundary buffer")
	fs.StringVar(&f.marker, "marker", string(pipeline.DefaultMarker), "character whose pairs are collapsed")
	fs.StringVar(&f.replacement, "replacement", string(pipeline.DefaultReplacement), "character that replaces a marker pair")
	fs.StringVar(&f.separator, "separator", string(pipeline.DefaultSeparator), "character appended to every input line")

	fs.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&f.dev, "dev", false, "human readable debug logging")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics, /health and /status on this address")
	fs.DurationVar(&f.linger, "linger", 0, "keep the metrics server up this long after the run")

	fs.Float64Var(&f.rate, "rate", 0, "max input lines per second (0 = unlimited)")
	fs.IntVar(&f.burst, "burst", 1, "rate limiter burst")
	return fs
}

// apply copies explicitly set flags over cfg, so they beat file and env values.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input":
			cfg.Input.Path = f.input
		case "output":
			cfg.Output.Path = f.output
		case "decompress":
			cfg.Input.Decompress = f.decompress
		case "encoding":
			cfg.Input.Encoding = f.encoding
		case "stop":
			cfg.Pipeline.StopToken = f.stop
		case "width":
			cfg.Pipeline.ChunkWidth = f.width
		case "max-lines":
			cfg.Pipeline.MaxOutputLines = f.maxLines
		case "max-line-length":
			cfg.Pipeline.MaxLineLength = f.maxLineLength
		case "buffer":
			cfg.Pipeline.BufferCapacity = f.bufferCap
		case "marker":
			cfg.Pipeline.Marker = f.marker
		case "replacement":
			cfg.Pipeline.Replacement = f.replacement
		case "separator":
			cfg.Pipeline.Separator = f.separator
		case "log-level":
			cfg.Logging.Level = f.logLevel
		case "dev":
			cfg.Logging.Development = f.dev
		case "metrics-addr":
			cfg.Metrics.Addr = f.metricsAddr
		case "rate":
			cfg.RateLimit.LinesPerSecond = f.rate
		case "burst":
			cfg.RateLimit.Burst = f.burst
		}
	})
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var f flags
	fs := newFlagSet(stderr, &f)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(stderr, "lineproc: %v\n", err)
		return exitUsage
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "lineproc: %v\n", err)
		return exitUsage
	}
	f.apply(fs, cfg)

	pcfg, err := cfg.Pipeline.ToPipeline()
	if err != nil {
		fmt.Fprintf(stderr, "lineproc: %v\n", err)
		return exitUsage
	}

	logger, err := logging.NewWithWriter(cfg.Logging.ToLogging(), stderr)
	if err != nil {
		fmt.Fprintf(stderr, "lineproc: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	if err := process(ctx, cfg, pcfg, f.linger, logger, stdin, stdout); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			logger.Warn("Run cancelled", zap.Error(err))
			return exitCancelled
		}
		logger.Error("Run failed", zap.Error(err))
		return exitFailure
	}
	return exitOK
}

// process wires the streams, observability and the pipeline for one run.
func process(ctx context.Context, cfg *config.Config, pcfg pipeline.Config, linger time.Duration, logger *logging.Logger, stdin io.Reader, stdout io.Writer) (err error) {
	// Cancellation closes stdin so a read on an idle stream returns.
	var stdinCloser io.Closer
	if cl, ok := stdin.(io.Closer); ok && displayPath(cfg.Input.Path, "") == "" {
		stdinCloser = cl
	}

	in, err := openInput(ctx, cfg.Input, stdin, stdinCloser)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := stream.OpenOutput(cfg.Output.Path, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	tracer := tracing.New("lineproc", logger.Logger)
	defer tracer.Close()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger.Logger),
		pipeline.WithRecorder(metrics),
		pipeline.WithLimiter(cfg.RateLimit.Limiter()),
		pipeline.WithTracer(tracer),
	}
	if stdinCloser != nil {
		opts = append(opts, pipeline.WithInputCloser(stdinCloser))
	}
	p, err := pipeline.New(pcfg, in, out, opts...)
	if err != nil {
		return err
	}

	logger.Info("Starting lineproc",
		zap.String("run_id", p.RunID().String()),
		zap.String("input", displayPath(cfg.Input.Path, "stdin")),
		zap.String("input_format", in.Format),
		zap.String("input_charset", in.Charset),
		zap.String("output", displayPath(cfg.Output.Path, "stdout")),
		zap.Int("chunk_width", pcfg.ChunkWidth),
		zap.Int("max_output_lines", pcfg.MaxOutputLines),
	)

	if cfg.Metrics.Addr != "" {
		srv := server.NewServer(
			server.Config{Addr: cfg.Metrics.Addr, Development: cfg.Logging.Development},
			server.Deps{
				Logger:   logger,
				Gatherer: reg,
				Metrics:  metrics,
				Tracer:   tracer,
				Status:   func() any { return p.Snapshot() },
				RunDone:  p.Done(),
			},
		)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Metrics server shutdown", zap.Error(err))
			}
		}()
	}

	res, err := p.Run(ctx)
	logger.Info("Run finished",
		zap.String("reason", string(res.Reason)),
		zap.Int("lines_read", res.LinesRead),
		zap.Int("records_emitted", res.RecordsEmitted),
		zap.Int("pairs_collapsed", res.PairsCollapsed),
		zap.Duration("duration", res.Duration),
	)

	if cfg.Metrics.Addr != "" && linger > 0 && err == nil {
		select {
		case <-time.After(linger):
		case <-ctx.Done():
		}
	}
	return err
}

// openInput opens the configured input. Sniffing the header reads from stdin,
// so cancellation closes it to release that read.
func openInput(ctx context.Context, cfg config.InputConfig, stdin io.Reader, stdinCloser io.Closer) (*stream.Input, error) {
	if stdinCloser != nil {
		release := context.AfterFunc(ctx, func() { _ = stdinCloser.Close() })
		defer release()
	}

	in, err := stream.OpenInput(cfg.Path, stdin, stream.InputOptions{
		Decompress: cfg.Decompress,
		Encoding:   cfg.Encoding,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	return in, nil
}

func displayPath(path, fallback string) string {
	if path == "" || path == "-" {
		return fallback
	}
	return path
}
