package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// runSource reads lines and hands them to the Normalizer one at a time.
func (c *Coordinator) runSource(ctx context.Context) error {
	log := c.logger.Named(StageSource)

	scanner := bufio.NewScanner(c.in)
	// Room for the line plus a "\r\n" terminator.
	limit := c.cfg.MaxLineLength + 2
	scanner.Buffer(make([]byte, 0, min(limit, bufio.MaxScanTokenSize)), limit)

	for {
		aborted, limitReached := c.sourceState()
		if aborted {
			return nil
		}
		if limitReached {
			c.closeSlot(ReasonOutputLimit)
			log.Info("output limit reached", zap.Int("max_output_lines", c.cfg.MaxOutputLines))
			return nil
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					// Cancellation already aborted the run.
					return nil
				}
				serr := NewStageError(StageSource, err)
				c.abort(serr)
				return serr
			}
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				if aborted, _ := c.sourceState(); aborted {
					// The input was closed under a blocked Read.
					return nil
				}
				if errors.Is(err, bufio.ErrTooLong) {
					err = fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, c.cfg.MaxLineLength)
				}
				serr := NewStageError(StageSource, err)
				c.abort(serr)
				return serr
			}
			c.closeSlot(ReasonEndOfInput)
			log.Info("end of input")
			return nil
		}

		line := scanner.Text()
		if line == c.cfg.StopToken {
			c.closeSlot(ReasonStopToken)
			log.Info("stop token received")
			return nil
		}
		if len(line) > c.cfg.MaxLineLength {
			serr := NewStageError(StageSource, fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, c.cfg.MaxLineLength))
			c.abort(serr)
			return serr
		}

		if !c.offerLine([]rune(line)) {
			return nil
		}
		log.Debug("line forwarded", zap.Int("bytes", len(line)))
	}
}

// sourceState reports whether the run was aborted and whether the Sink has
// already emitted MaxOutputLines records.
func (c *Coordinator) sourceState() (aborted, limitReached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted, c.stats.RecordsEmitted >= c.cfg.MaxOutputLines
}

// offerLine waits for the slot to empty and stores line in it. It returns
// false when the run was aborted.
func (c *Coordinator) offerLine(line []rune) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wait(StageSource, c.slot.hasSpace, func() bool {
		return !c.slot.full || c.aborted
	})
	if c.aborted {
		return false
	}

	c.slot.put(line)
	c.stats.LinesRead++
	c.recorder.LineRead()
	c.recorder.RunesMoved(BoundarySlot, len(line))
	c.slot.hasData.Signal()
	return true
}

// closeSlot marks the end of input. A line still in the slot is delivered first.
func (c *Coordinator) closeSlot(reason StopReason) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slot.closed = true
	if c.stats.Reason == ReasonNone {
		c.stats.Reason = reason
	}
	c.slot.hasData.Signal()
}
