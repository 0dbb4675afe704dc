package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/lineproc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/lineproc/internal/shared/id"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Stage names
const (
	StageSource     = "source"
	StageNormalizer = "normalizer"
	StageCollapser  = "collapser"
	StageSink       = "sink"
)

// StopReason explains why a run ended
type StopReason string

const (
	ReasonNone        StopReason = ""
	ReasonStopToken   StopReason = "stop_token"
	ReasonEndOfInput  StopReason = "end_of_input"
	ReasonOutputLimit StopReason = "output_limit"
	ReasonCancelled   StopReason = "cancelled"
	ReasonFailed      StopReason = "failed"
)

// Stats is a point-in-time view of a run
type Stats struct {
	RunID           string     `json:"run_id"`
	LinesRead       int        `json:"lines_read"`
	RunesNormalized int        `json:"runes_normalized"`
	PairsCollapsed  int        `json:"pairs_collapsed"`
	RecordsEmitted  int        `json:"records_emitted"`
	Reason          StopReason `json:"reason,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	Finished        bool       `json:"finished"`
}

// Result is the outcome of a finished run
type Result struct {
	Stats
	Duration time.Duration `json:"duration"`
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger. Stages log through named children of it.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder sets the measurement sink
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLimiter paces the Source; it waits for one token per line read.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Coordinator) {
		c.limiter = l
	}
}

// WithTracer records one span per stage
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

// WithRunID overrides the generated run ID
func WithRunID(runID id.RunID) Option {
	return func(c *Coordinator) {
		if runID != "" {
			c.runID = runID
		}
	}
}

// WithInputCloser registers a closer for the input. An aborted run closes it
// so a Source blocked in Read on an idle stream is released.
func WithInputCloser(cl io.Closer) Option {
	return func(c *Coordinator) {
		c.inCloser = cl
	}
}

// Coordinator owns the shared buffers and the lifecycle of the four stages.
type Coordinator struct {
	cfg      Config
	in       io.Reader
	out      io.Writer
	logger   *zap.Logger
	recorder Recorder
	limiter  *rate.Limiter
	tracer   *tracing.Tracer
	runID    id.RunID
	inCloser io.Closer

	// mu guards every field below it.
	mu         sync.Mutex
	slot       *slot
	normalized *accumulator
	collapsed  *accumulator
	aborted    bool
	err        error
	started    bool
	finished   bool
	stats      Stats

	done chan struct{}
}

// New validates cfg and builds a Coordinator. Nothing runs until Run.
func New(cfg Config, in io.Reader, out io.Writer, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if in == nil || out == nil {
		return nil, ErrNilStream
	}

	c := &Coordinator{
		cfg:      cfg,
		in:       in,
		out:      out,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = id.NewRunID()
	}
	c.logger = c.logger.With(zap.String("run_id", c.runID.String()))

	c.slot = newSlot(&c.mu)
	c.normalized = newAccumulator(BoundaryNormalized, cfg.BufferCapacity, &c.mu)
	c.collapsed = newAccumulator(BoundaryCollapsed, cfg.BufferCapacity, &c.mu)
	c.stats.RunID = c.runID.String()

	return c, nil
}

// RunID returns the identifier of this run
func (c *Coordinator) RunID() id.RunID {
	return c.runID
}

// Done is closed once Run has joined every stage.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Snapshot returns the current statistics
func (c *Coordinator) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run starts the four stages, waits for all of them and reports the outcome.
// The returned error is the first fatal error, or ctx.Err() when the run was
// cancelled. A Coordinator runs at most once.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return Result{}, ErrAlreadyRun
	}
	c.started = true
	c.stats.StartedAt = time.Now()
	c.mu.Unlock()
	defer close(c.done)

	ctx = tracing.WithTraceID(ctx, tracing.TraceID(c.runID))
	stopWatch := context.AfterFunc(ctx, func() {
		c.abort(context.Cause(ctx))
	})

	c.logger.Info("pipeline starting",
		zap.Int("chunk_width", c.cfg.ChunkWidth),
		zap.Int("max_output_lines", c.cfg.MaxOutputLines),
		zap.String("stop_token", c.cfg.StopToken),
	)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageSource, c.runSource},
		{StageNormalizer, c.runNormalizer},
		{StageCollapser, c.runCollapser},
		{StageSink, c.runSink},
	}

	var g errgroup.Group
	for _, st := range stages {
		g.Go(func() error {
			return c.runStage(ctx, st.name, st.fn)
		})
	}
	werr := g.Wait()
	stopWatch()

	c.mu.Lock()
	c.finished = true
	// c.err is the error that aborted the run. A stage that failed without
	// aborting is still reported.
	err := c.err
	if err == nil {
		err = werr
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.stats.Reason = ReasonCancelled
	default:
		c.stats.Reason = ReasonFailed
	}
	res := Result{Stats: c.stats, Duration: time.Since(c.stats.StartedAt)}
	c.mu.Unlock()

	c.recorder.RunFinished(string(res.Reason), res.Duration)
	fields := []zap.Field{
		zap.String("reason", string(res.Reason)),
		zap.Int("lines_read", res.LinesRead),
		zap.Int("records_emitted", res.RecordsEmitted),
		zap.Int("pairs_collapsed", res.PairsCollapsed),
		zap.Duration("duration", res.Duration),
	}
	if err != nil {
		c.logger.Error("pipeline failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("pipeline finished", fields...)
	}
	return res, err
}

// runStage wraps a stage with its span, state metric and lifecycle logs.
func (c *Coordinator) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	log := c.logger.Named(name)

	var span *tracing.Span
	if c.tracer != nil {
		span, ctx = c.tracer.StartSpan(ctx, "stage."+name)
	}

	c.recorder.StageState(name, true)
	log.Debug("stage started")

	err := fn(ctx)

	c.recorder.StageState(name, false)
	if err != nil {
		log.Error("stage failed", zap.Error(err))
	} else {
		log.Debug("stage stopped")
	}

	if span != nil {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		c.tracer.Submit(span)
	}
	return err
}

// abort records the first fatal error, wakes every waiting stage and closes
// the registered input. It is a no-op once the Sink has written the final
// record.
func (c *Coordinator) abort(err error) {
	c.mu.Lock()
	if c.finished || c.stats.Finished || c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	c.err = err

	for _, cond := range []*sync.Cond{
		c.slot.hasData, c.slot.hasSpace,
		c.normalized.hasData, c.normalized.hasSpace,
		c.collapsed.hasData, c.collapsed.hasSpace,
	} {
		cond.Broadcast()
	}
	c.mu.Unlock()

	// Close may block until a pending Read returns, so it runs unlocked.
	if c.inCloser != nil {
		if cerr := c.inCloser.Close(); cerr != nil {
			c.logger.Debug("close input on abort", zap.Error(cerr))
		}
	}
}

// wait blocks on cond until ready holds. ready must also report true once the
// run is aborted. Callers hold c.mu.
func (c *Coordinator) wait(stage string, cond *sync.Cond, ready func() bool) {
	if ready() {
		return
	}
	start := time.Now()
	for !ready() {
		cond.Wait()
	}
	c.recorder.StageWaited(stage, time.Since(start))
}
