// Package pipeline implements a four-stage line processing pipeline.
//
// The stages run as goroutines and hand data to each other through three
// boundaries guarded by one mutex. Each boundary has its own pair of
// condition variables (hasData, hasSpace) and an explicit end-of-stream flag.
//
// Pipeline Architecture:
//
//	Source      reads lines from the input, strips the terminator
//	   ↓ SLOT (single line handoff)
//	Normalizer  appends one separator per line
//	   ↓ ACCUMULATOR (growable rune buffer, soft capacity)
//	Collapser   rewrites each non-overlapping marker pair into the replacement
//	   ↓ ACCUMULATOR (growable rune buffer, soft capacity)
//	Sink        cuts fixed-width records and writes them to the output
//
// Shutdown:
//
// The Source stops on the stop token, at end of input, or once the Sink has
// emitted the configured number of records. It closes the slot; the
// end-of-stream flag then flows Normalizer → Collapser → Sink, each stage
// setting its output flag only after its last append. The Sink writes a final
// short record when a remainder is left and never writes an empty one.
//
// A read or write failure, or cancellation of the Run context, aborts the run:
// every condition is broadcast and every stage leaves through its normal exit
// path. Run always joins all four stages before it returns. A Source blocked
// inside Read notices the abort only once that Read returns; register the
// input with WithInputCloser so the abort closes it and the Read fails.
//
// Example Usage:
//
//	cfg := pipeline.DefaultConfig()
//	p, err := pipeline.New(cfg, os.Stdin, os.Stdout, pipeline.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	res, err := p.Run(ctx)
//	// → res.RecordsEmitted, res.Reason
package pipeline
