package pipeline

import (
	"bufio"
	"context"

	"go.uber.org/zap"
)

// runSink cuts fixed-width records from the collapsed buffer and writes them.
func (c *Coordinator) runSink(context.Context) error {
	log := c.logger.Named(StageSink)
	w := bufio.NewWriter(c.out)

	for {
		records, final, ok := c.cutRecords()
		if !ok {
			return nil
		}

		if err := writeRecords(w, records); err != nil {
			serr := NewStageError(StageSink, err)
			c.abort(serr)
			return serr
		}
		c.recordsWritten(records, final)
		if len(records) > 0 {
			log.Debug("records written", zap.Int("count", len(records)))
		}

		if final {
			log.Info("end of stream reached")
			return nil
		}
	}
}

// cutRecords removes every full record from the collapsed buffer. At
// end-of-stream a non-empty remainder becomes the final, short record.
func (c *Coordinator) cutRecords() (records [][]rune, final, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	width := c.cfg.ChunkWidth
	c.wait(StageSink, c.collapsed.hasData, func() bool {
		return c.collapsed.size() >= width || c.collapsed.eos || c.aborted
	})
	if c.aborted {
		return nil, false, false
	}

	for c.collapsed.size() >= width {
		records = append(records, c.collapsed.takePrefix(width))
	}
	final = c.collapsed.eos
	if final && c.collapsed.size() > 0 {
		records = append(records, c.collapsed.takeAll())
	}

	if len(records) > 0 {
		c.recorder.BufferDepth(BoundaryCollapsed, c.collapsed.size())
		c.collapsed.hasSpace.Signal()
	}
	return records, final, true
}

// writeRecords writes each record on its own line and flushes the batch.
func writeRecords(w *bufio.Writer, records [][]rune) error {
	for _, rec := range records {
		if _, err := w.WriteString(string(rec)); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// recordsWritten counts records once they reached the output. The Source
// reads the count to enforce MaxOutputLines.
func (c *Coordinator) recordsWritten(records [][]rune, final bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.RecordsEmitted += len(records)
	for _, rec := range records {
		c.recorder.RecordEmitted(len(rec))
	}
	if final {
		c.stats.Finished = true
	}
}
