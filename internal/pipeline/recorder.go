package pipeline

import "time"

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use and must not block: most calls are made with the pipeline
// mutex held.
type Recorder interface {
	LineRead()
	RunesMoved(boundary string, n int)
	PairsCollapsed(n int)
	RecordEmitted(runes int)
	BufferDepth(boundary string, n int)
	StageWaited(stage string, d time.Duration)
	StageState(stage string, active bool)
	RunFinished(reason string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) LineRead() {}
func (nopRecorder) RunesMoved(string, int) {}
func (nopRecorder) PairsCollapsed(int) {}
func (nopRecorder) RecordEmitted(int) {}
func (nopRecorder) BufferDepth(string, int) {}
func (nopRecorder) StageWaited(string, time.Duration) {}
func (nopRecorder) StageState(string, bool) {}
func (nopRecorder) RunFinished(string, time.Duration) {}
