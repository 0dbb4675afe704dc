package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// runNormalizer moves lines from the slot into the normalized buffer, each
// followed by one separator.
func (c *Coordinator) runNormalizer(context.Context) error {
	log := c.logger.Named(StageNormalizer)
	for {
		more, n := c.normalizeNext()
		if !more {
			return nil
		}
		log.Debug("line normalized", zap.Int("runes", n))
	}
}

// normalizeNext handles one slot event inside a single critical section. It
// returns false once end-of-stream has been forwarded or the run was aborted.
func (c *Coordinator) normalizeNext() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.wait(StageNormalizer, c.slot.hasData, func() bool {
		return c.slot.full || c.slot.closed || c.aborted
	})
	if c.aborted {
		return false, 0
	}
	if c.slot.drained() {
		c.normalized.eos = true
		c.normalized.hasData.Signal()
		return false, 0
	}

	line := c.slot.take()
	c.slot.hasSpace.Signal()

	c.wait(StageNormalizer, c.normalized.hasSpace, func() bool {
		return !c.normalized.full() || c.aborted
	})
	if c.aborted {
		return false, 0
	}

	c.normalized.append(line...)
	c.normalized.append(c.cfg.Separator)
	n := len(line) + 1

	c.stats.RunesNormalized += n
	c.recorder.RunesMoved(BoundaryNormalized, n)
	c.recorder.BufferDepth(BoundaryNormalized, c.normalized.size())
	c.normalized.hasData.Signal()
	return true, n
}
