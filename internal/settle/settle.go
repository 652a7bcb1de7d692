// Package settle runs independent operations concurrently and keeps whatever succeeds.
//
// A failing operation never cancels its siblings and never fails the batch; its
// error is counted and logged by the caller. The surviving results are
// concatenated in the order the operations were given.
package settle

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Op produces zero or more items.
type Op[T any] func(ctx context.Context) ([]T, error)

// One adapts a single-value call into an [Op].
func One[T any](fn func(ctx context.Context) (T, error)) Op[T] {
	return func(ctx context.Context) ([]T, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return []T{v}, nil
	}
}

// Batch is the outcome of [All].
type Batch[T any] struct {
	Items     []T
	Succeeded int
	Failed    int
	Errors    []error
}

// Empty reports whether no operation contributed an item.
func (b Batch[T]) Empty() bool { return len(b.Items) == 0 }

// Fatal returns the first collected error matching isFatal, or nil.
func (b Batch[T]) Fatal(isFatal func(error) bool) error {
	for _, err := range b.Errors {
		if isFatal(err) {
			return err
		}
	}
	return nil
}

type options struct {
	limit    int
	observer func(done, total int, err error)
}

// Option configures [All].
type Option func(*options)

// WithLimit caps how many operations run at once. Zero or less means no cap.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithObserver is called once per settled operation, serialized, with the
// number settled so far.
func WithObserver(fn func(done, total int, err error)) Option {
	return func(o *options) { o.observer = fn }
}

// All runs every op and waits for all of them to settle.
func All[T any](ctx context.Context, ops []Op[T], opts ...Option) Batch[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		mu      sync.Mutex
		done    int
		g       errgroup.Group
		results = make([][]T, len(ops))
		errs    = make([]error, len(ops))
	)
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	for i, op := range ops {
		g.Go(func() error {
			items, err := op(ctx)
			results[i], errs[i] = items, err

			mu.Lock()
			done++
			if o.observer != nil {
				o.observer(done, len(ops), err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var batch Batch[T]
	for i := range ops {
		if errs[i] != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, errs[i])
			continue
		}
		batch.Succeeded++
		batch.Items = append(batch.Items, results[i]...)
	}
	return batch
}
