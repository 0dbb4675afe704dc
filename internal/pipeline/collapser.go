package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// runCollapser drains the normalized buffer, rewrites marker pairs and
// appends the result to the collapsed buffer. A marker ending one batch is
// carried by the Rewriter and matched against the next batch.
func (c *Coordinator) runCollapser(context.Context) error {
	log := c.logger.Named(StageCollapser)
	rw := NewRewriter(c.cfg.Marker, c.cfg.Replacement)

	for {
		batch, final, ok := c.drainNormalized()
		if !ok {
			return nil
		}

		out, pairs := rw.Rewrite(batch, final)
		if !c.publishCollapsed(out, pairs, final) {
			return nil
		}
		log.Debug("batch collapsed",
			zap.Int("in", len(batch)),
			zap.Int("out", len(out)),
			zap.Int("pairs", pairs),
			zap.Bool("held", rw.Pending()),
		)
		if final {
			return nil
		}
	}
}

// drainNormalized takes everything currently in the normalized buffer. final
// reports that the Normalizer has finished, so nothing follows this batch.
func (c *Coordinator) drainNormalized() (batch []rune, final, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wait(StageCollapser, c.normalized.hasData, func() bool {
		return c.normalized.size() > 0 || c.normalized.eos || c.aborted
	})
	if c.aborted {
		return nil, false, false
	}

	batch = c.normalized.takeAll()
	c.recorder.BufferDepth(BoundaryNormalized, 0)
	c.normalized.hasSpace.Signal()
	return batch, c.normalized.eos, true
}

// publishCollapsed appends a rewritten batch and, on the final batch, sets
// end-of-stream in the same critical section.
func (c *Coordinator) publishCollapsed(out []rune, pairs int, final bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(out) > 0 {
		c.wait(StageCollapser, c.collapsed.hasSpace, func() bool {
			return !c.collapsed.full() || c.aborted
		})
	}
	if c.aborted {
		return false
	}

	c.collapsed.append(out...)
	if final {
		c.collapsed.eos = true
	}

	c.stats.PairsCollapsed += pairs
	c.recorder.PairsCollapsed(pairs)
	c.recorder.RunesMoved(BoundaryCollapsed, len(out))
	c.recorder.BufferDepth(BoundaryCollapsed, c.collapsed.size())
	if len(out) > 0 || final {
		c.collapsed.hasData.Signal()
	}
	return true
}
