package settle

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func ok[T any](items ...T) Op[T] {
	return func(context.Context) ([]T, error) { return items, nil }
}

func fail[T any](msg string) Op[T] {
	return func(context.Context) ([]T, error) { return nil, errors.New(msg) }
}

func TestAll(t *testing.T) {
	ctx := context.Background()

	t.Run("drops failures and keeps order", func(t *testing.T) {
		batch := All(ctx, []Op[int]{ok(1, 2), fail[int]("nope"), ok(3)})

		if !slices.Equal(batch.Items, []int{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", batch.Items)
		}
		if batch.Succeeded != 2 || batch.Failed != 1 {
			t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", batch.Succeeded, batch.Failed)
		}
		if len(batch.Errors) != 1 || batch.Errors[0].Error() != "nope" {
			t.Errorf("unexpected errors %v", batch.Errors)
		}
	})

	t.Run("all failing yields empty", func(t *testing.T) {
		batch := All(ctx, []Op[int]{fail[int]("a"), fail[int]("b")})

		if !batch.Empty() {
			t.Errorf("expected no items, got %v", batch.Items)
		}
		if batch.Failed != 2 {
			t.Errorf("expected 2 failures, got %d", batch.Failed)
		}
	})

	t.Run("no operations", func(t *testing.T) {
		batch := All[string](ctx, nil)
		if !batch.Empty() || batch.Succeeded != 0 || batch.Failed != 0 {
			t.Errorf("expected zero batch, got %+v", batch)
		}
	})

	t.Run("failure does not cancel siblings", func(t *testing.T) {
		slow := func(ctx context.Context) ([]int, error) {
			select {
			case <-time.After(20 * time.Millisecond):
				return []int{7}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		batch := All(ctx, []Op[int]{fail[int]("fast"), slow})
		if !slices.Equal(batch.Items, []int{7}) {
			t.Errorf("expected slow op to finish, got %v", batch.Items)
		}
	})

	t.Run("limit caps concurrency", func(t *testing.T) {
		var running, peak atomic.Int32
		op := func(context.Context) ([]int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return []int{1}, nil
		}

		ops := make([]Op[int], 12)
		for i := range ops {
			ops[i] = op
		}

		batch := All(ctx, ops, WithLimit(3))
		if len(batch.Items) != 12 {
			t.Errorf("expected 12 items, got %d", len(batch.Items))
		}
		if peak.Load() > 3 {
			t.Errorf("expected at most 3 concurrent ops, saw %d", peak.Load())
		}
	})

	t.Run("observer sees every settlement", func(t *testing.T) {
		var calls []int
		var failures int
		observer := func(done, total int, err error) {
			calls = append(calls, done)
			if total != 3 {
				t.Errorf("expected total 3, got %d", total)
			}
			if err != nil {
				failures++
			}
		}

		All(ctx, []Op[int]{ok(1), fail[int]("x"), ok(2)}, WithObserver(observer))
		if !slices.Equal(calls, []int{1, 2, 3}) {
			t.Errorf("expected done counts 1..3, got %v", calls)
		}
		if failures != 1 {
			t.Errorf("expected one failed settlement, got %d", failures)
		}
	})
}

func TestOne(t *testing.T) {
	ctx := context.Background()
	good := One(func(context.Context) (string, error) { return "id", nil })
	bad := One(func(context.Context) (string, error) { return "", errors.New("no") })

	batch := All(ctx, []Op[string]{bad, good})
	if !slices.Equal(batch.Items, []string{"id"}) {
		t.Errorf("expected [id], got %v", batch.Items)
	}
}

func TestBatchFatal(t *testing.T) {
	auth := errors.New("auth")
	batch := All(context.Background(), []Op[int]{fail[int]("page"), func(context.Context) ([]int, error) { return nil, auth }})

	if got := batch.Fatal(func(err error) bool { return errors.Is(err, auth) }); got != auth {
		t.Errorf("expected auth error, got %v", got)
	}
	if got := batch.Fatal(func(error) bool { return false }); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
