// Package pipeline provides lazy, pull-based stages for feeding batches to
// the training loop.
//
// Nothing runs until values are pulled via Collect, ForEach, or Iter. Each
// stage pulls from the previous one on demand, so a slow consumer throttles
// decoding without explicit flow control.
//
// Synchronous stages: Map, Tap.
// Concurrent stages: Parallel (ordered worker pool), Buffer (prefetch).
//
//	src := pipeline.FromSlice(batches)
//	decoded := pipeline.Parallel(src, 4, decodeBatch)
//	prefetched := pipeline.Buffer(decoded, 2)
//	err := pipeline.ForEach(ctx, prefetched, step)
package pipeline
