package pipeline

// Rewriter collapses every non-overlapping pair of adjacent markers into one
// replacement rune. It keeps state between calls so that a pair split across
// two batches collapses exactly as if it had arrived in one.
type Rewriter struct {
	marker      rune
	replacement rune
	held        bool // a marker ended the previous batch
}

// NewRewriter creates a Rewriter for the given marker and replacement.
func NewRewriter(marker, replacement rune) *Rewriter {
	return &Rewriter{marker: marker, replacement: replacement}
}

// Rewrite returns the rewritten form of batch and the number of pairs it
// collapsed. Unless final is set, a marker ending the batch is held back and
// scanned against the next call. On the final call a held marker is emitted
// as is.
func (r *Rewriter) Rewrite(batch []rune, final bool) ([]rune, int) {
	out := make([]rune, 0, len(batch)+1)
	pairs := 0
	i := 0

	if r.held {
		switch {
		case len(batch) > 0 && batch[0] == r.marker:
			out = append(out, r.replacement)
			pairs++
			i = 1
			r.held = false
		case len(batch) > 0 || final:
			out = append(out, r.marker)
			r.held = false
		}
	}

	for i < len(batch) {
		ch := batch[i]
		if ch != r.marker {
			out = append(out, ch)
			i++
			continue
		}
		if i+1 < len(batch) {
			if batch[i+1] == r.marker {
				out = append(out, r.replacement)
				pairs++
				i += 2
				continue
			}
			out = append(out, ch)
			i++
			continue
		}
		// Last rune of the batch.
		if final {
			out = append(out, ch)
		} else {
			r.held = true
		}
		i++
	}

	return out, pairs
}

// Pending reports whether a marker is being held for the next batch.
func (r *Rewriter) Pending() bool {
	return r.held
}

// Collapse applies the rewrite to a complete string in one pass.
func Collapse(s string, marker, replacement rune) string {
	out, _ := NewRewriter(marker, replacement).Rewrite([]rune(s), true)
	return string(out)
}
