package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// Guarded wraps a Source with a circuit breaker and collapses concurrent
// Get calls for the same product id.
type Guarded struct {
	source  Source
	breaker *gobreaker.CircuitBreaker[any]
	sfg     singleflight.Group
	timeout time.Duration // bounds a collapsed Get, which outlives its callers
}

// abandoned wraps an error returned after the caller's context ended. The
// breaker does not count it against the source.
type abandoned struct{ err error }

func (a abandoned) Error() string { return a.err.Error() }
func (a abandoned) Unwrap() error { return a.err }

func NewGuarded(source Source, logger *slog.Logger) *Guarded {
	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// unknown products are answers, not outages
		IsSuccessful: func(err error) bool {
			var gone abandoned
			return err == nil || errors.Is(err, ErrProductNotFound) || errors.As(err, &gone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Guarded{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		timeout: 5 * time.Second,
	}
}

// Get shares one source lookup between concurrent callers. The lookup runs
// under its own deadline, so a caller that gives up neither cancels it for
// the others nor counts as a source failure.
func (g *Guarded) Get(ctx context.Context, id string) (*Product, error) {
	ch := g.sfg.DoChan(id, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.breaker.Execute(func() (any, error) {
			return g.source.Get(callCtx, id)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Product), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Guarded) Featured(ctx context.Context, limit int) ([]*Product, error) {
	return guard(ctx, g.breaker, func() ([]*Product, error) {
		return g.source.Featured(ctx, limit)
	})
}

func (g *Guarded) Search(ctx context.Context, q Query) ([]*Product, error) {
	return guard(ctx, g.breaker, func() ([]*Product, error) {
		return g.source.Search(ctx, q)
	})
}

func (g *Guarded) Categories(ctx context.Context) ([]Category, error) {
	return guard(ctx, g.breaker, func() ([]Category, error) {
		return g.source.Categories(ctx)
	})
}

func (g *Guarded) RecordView(ctx context.Context, id string) error {
	_, err := guard(ctx, g.breaker, func() (struct{}, error) {
		return struct{}{}, g.source.RecordView(ctx, id)
	})
	return err
}

func guard[T any](ctx context.Context, cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (any, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil {
			return v, abandoned{err: err}
		}
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
