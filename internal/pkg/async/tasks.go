package async

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/exp/constraints"
)

type Errors struct {
	E []error
}

var _ error = (*Errors)(nil)

func (e Errors) Wrapped() error {
	if len(e.E) == 0 {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	var sb strings.Builder
	l := len(e.E)
	for i, err := range e.E {
		sb.WriteString(err.Error())
		if i < l-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}

// Map runs f over src with at most concurrencyLimit goroutines in flight,
// collecting results and errors. Result order is not guaranteed.
func Map[T any, D any](src []T, concurrencyLimit int, f func(T) (D, error)) ([]D, error) {
	return MapCtx(context.Background(), src, concurrencyLimit, func(_ context.Context, el T) (D, error) {
		return f(el)
	})
}

// MapCtx is Map with cooperative cancellation: once ctx is done no further
// elements are dispatched, and ctx.Err() is appended to the collected errors.
// Elements already in flight run to completion, so partial results are
// internally consistent.
func MapCtx[T any, D any](ctx context.Context, src []T, concurrencyLimit int, f func(context.Context, T) (D, error)) ([]D, error) {
	if len(src) == 0 {
		return []D{}, nil
	}

	if concurrencyLimit <= 0 {
		concurrencyLimit = len(src)
	}

	var wg sync.WaitGroup

	limiter := make(chan struct{}, concurrencyLimit)

	bufSize := max(min(len(src)/2, 32), 1)
	resCh := make(chan D, bufSize)

	errCh := make(chan error, bufSize)

	errable := func(f func() error) {
		if err := f(); err != nil {
			errCh <- err
		}
	}

	// result fan-in
	results := []D{}
	go func() {
		for {
			res, ok := <-resCh
			if !ok {
				return
			}
			results = append(results, res)
			wg.Done()
		}
	}()

	// error fan-in
	errs := Errors{}
	go func() {
		for {
			err, ok := <-errCh
			if !ok {
				return
			}
			errs.E = append(errs.E, err)
			wg.Done()
		}
	}()

	dispatched := 0
	for _, element := range src {
		if err := ctx.Err(); err != nil {
			break
		}
		limiter <- struct{}{}
		wg.Add(1)
		dispatched++
		go func(el T) {
			defer func() {
				<-limiter
			}()

			errable(func() error {
				r, err := f(ctx, el)
				if err != nil {
					return err
				}
				resCh <- r
				return nil
			})
		}(element)
	}

	wg.Wait()

	close(resCh)
	close(errCh)

	if dispatched < len(src) {
		errs.E = append(errs.E, ctx.Err())
	}

	return results, errs.Wrapped()
}

func FlatMap[T any, D any](src []T, concurrencyLimit int, f func(T) ([]D, error)) ([]D, error) {
	r, err := Map(src, concurrencyLimit, f)
	if err != nil {
		return nil, err
	}

	flattened := make([]D, 0, len(r))
	for _, v := range r {
		flattened = append(flattened, v...)
	}

	return flattened, nil
}

func min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	} else {
		return b
	}
}

func max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	} else {
		return b
	}
}
