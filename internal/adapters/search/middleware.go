package search

import (
	"context"
	"time"

	"marketresearch/pkg/errors"
)

// Runner is anything that answers a query with text for the model.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, query string) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Middleware decorates a Runner.
type Middleware interface {
	Wrap(r Runner) Runner
}

// Chain applies middlewares so the first one listed is the outermost.
func Chain(r Runner, mws ...Middleware) Runner {
	for i := len(mws) - 1; i >= 0; i-- {
		r = mws[i].Wrap(r)
	}
	return r
}

// RetryMiddleware retries failed searches with a fixed backoff.
// Validation errors are returned immediately.
type RetryMiddleware struct {
	Attempts int
	Backoff  time.Duration
}

// Wrap adds retry semantics. The error from the last attempt is returned.
func (m RetryMiddleware) Wrap(r Runner) Runner {
	attempts := m.Attempts
	if attempts <= 1 {
		return r
	}

	return RunnerFunc(func(ctx context.Context, query string) (string, error) {
		var (
			out string
			err error
		)
		for i := 0; i < attempts; i++ {
			out, err = r.Run(ctx, query)
			if err == nil {
				return out, nil
			}

			var verr *errors.ValidationError
			if errors.As(err, &verr) || ctx.Err() != nil {
				return out, err
			}

			if m.Backoff > 0 && i < attempts-1 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(m.Backoff):
				}
			}
		}
		return out, err
	})
}

// TimeoutMiddleware bounds a whole search call, retries included when it is outermost.
type TimeoutMiddleware struct {
	Timeout time.Duration
}

// Wrap sets a deadline on the call if configured.
func (m TimeoutMiddleware) Wrap(r Runner) Runner {
	if m.Timeout <= 0 {
		return r
	}

	return RunnerFunc(func(ctx context.Context, query string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, m.Timeout)
		defer cancel()
		return r.Run(ctx, query)
	})
}
