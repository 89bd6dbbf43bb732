package util

import (
	"context"
	"sync"
)

// Map runs fn over inputs with at most limit calls in flight and returns the
// results in input order. The first error cancels the remaining calls and is
// the one returned.
func Map[T, R any](ctx context.Context, inputs []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]R, len(inputs))
	tasks := make(chan int)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for range min(limit, len(inputs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				r, err := fn(ctx, inputs[i])
				if err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
				out[i] = r
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i := range inputs {
			select {
			case <-ctx.Done():
				return
			case tasks <- i:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
