package pipeline

import (
	"context"
	"sync"
)

// result carries a value or error through a channel.
type result[T any] struct {
	val T
	ok  bool
	err error
}

// channelIter reads values from a channel. Used by concurrent stages.
type channelIter[T any] struct {
	ch     <-chan result[T]
	closer func() error
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	select {
	case r, open := <-it.ch:
		if !open {
			return zero, false, nil
		}
		return r.val, r.ok, r.err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *channelIter[T]) Close() error {
	if it.closer != nil {
		return it.closer()
	}
	return nil
}

// Buffer prefetches up to size values from p in a background goroutine.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			source := p.create(ctx)
			bufCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T], size)
			done := make(chan struct{})

			go func() {
				defer close(done)
				defer close(ch)
				for {
					val, ok, err := source.Next(bufCtx)
					if err != nil {
						select {
						case ch <- result[T]{err: err}:
						case <-bufCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case ch <- result[T]{val: val, ok: true}:
					case <-bufCtx.Done():
						return
					}
				}
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					<-done
					return source.Close()
				},
			}
		},
	}
}

// Parallel applies fn to each value with up to n concurrent workers.
// Output order matches input order; at most n+1 values are in flight.
func Parallel[I, O any](p *Pipeline[I], n int, fn func(context.Context, I) (O, error)) *Pipeline[O] {
	if n <= 0 {
		n = 1
	}
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			source := p.create(ctx)
			workerCtx, cancel := context.WithCancel(ctx)
			// Each slot is a one-shot channel holding the result for one input.
			slots := make(chan chan result[O], n)
			out := make(chan result[O])
			var wg sync.WaitGroup

			// Producer: pull inputs in order and start one worker per slot.
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer close(slots)
				for {
					val, ok, err := source.Next(workerCtx)
					if err != nil {
						slot := make(chan result[O], 1)
						slot <- result[O]{err: err}
						select {
						case slots <- slot:
						case <-workerCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					slot := make(chan result[O], 1)
					select {
					case slots <- slot:
					case <-workerCtx.Done():
						return
					}
					wg.Add(1)
					go func(in I) {
						defer wg.Done()
						o, err := fn(workerCtx, in)
						if err != nil {
							slot <- result[O]{err: err}
							return
						}
						slot <- result[O]{val: o, ok: true}
					}(val)
				}
			}()

			// Sequencer: forward slot results in input order.
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer close(out)
				for slot := range slots {
					var r result[O]
					select {
					case r = <-slot:
					case <-workerCtx.Done():
						return
					}
					select {
					case out <- r:
					case <-workerCtx.Done():
						return
					}
					if r.err != nil {
						cancel()
						return
					}
				}
			}()

			return &channelIter[O]{
				ch: out,
				closer: func() error {
					cancel()
					wg.Wait()
					return source.Close()
				},
			}
		},
	}
}
