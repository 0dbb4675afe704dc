package pipeline

import "sync"

// Boundary names, used for metrics and logs.
const (
	BoundarySlot       = "slot"
	BoundaryNormalized = "normalized"
	BoundaryCollapsed  = "collapsed"
)

// slot is the single-line handoff between the Source and the Normalizer.
// All fields are guarded by the coordinator mutex.
type slot struct {
	line   []rune
	full   bool // an empty line is still a line
	closed bool // no further lines will be put

	hasData  *sync.Cond
	hasSpace *sync.Cond
}

func newSlot(mu *sync.Mutex) *slot {
	return &slot{
		hasData:  sync.NewCond(mu),
		hasSpace: sync.NewCond(mu),
	}
}

func (s *slot) put(line []rune) {
	s.line = line
	s.full = true
}

func (s *slot) take() []rune {
	line := s.line
	s.line = nil
	s.full = false
	return line
}

// drained reports that the slot is closed and holds nothing.
func (s *slot) drained() bool {
	return s.closed && !s.full
}

// accumulator is a growable rune buffer with one producer and one consumer.
// All fields are guarded by the coordinator mutex.
type accumulator struct {
	name     string
	data     []rune
	eos      bool
	capacity int

	hasData  *sync.Cond
	hasSpace *sync.Cond
}

func newAccumulator(name string, capacity int, mu *sync.Mutex) *accumulator {
	return &accumulator{
		name:     name,
		capacity: capacity,
		hasData:  sync.NewCond(mu),
		hasSpace: sync.NewCond(mu),
	}
}

func (a *accumulator) size() int {
	return len(a.data)
}

// full reports whether the producer must wait. The cap is soft: a producer
// that sees room appends its whole batch.
func (a *accumulator) full() bool {
	return len(a.data) >= a.capacity
}

func (a *accumulator) append(p ...rune) {
	a.data = append(a.data, p...)
}

// takePrefix removes up to n runes from the front and shifts the rest to index 0.
func (a *accumulator) takePrefix(n int) []rune {
	if n > len(a.data) {
		n = len(a.data)
	}
	out := make([]rune, n)
	copy(out, a.data[:n])
	rest := copy(a.data, a.data[n:])
	a.data = a.data[:rest]
	return out
}

func (a *accumulator) takeAll() []rune {
	return a.takePrefix(len(a.data))
}
