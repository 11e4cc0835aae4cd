// Package effect runs non-critical side effects (outbound broadcasts, summary
// fetches) without letting them block or fail the primary flow.
package effect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Func is a side effect. Its error is logged, never returned to the caller.
type Func func(ctx context.Context) error

// Group fires effects and lets an owner wait for the ones still running.
// The zero value is ready to use.
type Group struct {
	Logger *slog.Logger

	wg sync.WaitGroup
}

// Fire runs fn in a tracked goroutine. Errors and panics are logged under name.
// The effect keeps the values of ctx but not its cancellation: a caller that
// returns early does not abort effects it already fired.
func (g *Group) Fire(ctx context.Context, name string, fn Func) {
	logger := g.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	g.wg.Add(1)
	lifecycle.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("effect panic", "effect", name, "error", fmt.Errorf("%v", r))
			}
		}()
		if err := fn(ctx); err != nil {
			logger.Warn("effect failed", "effect", name, "error", err)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("effect aborted", "effect", name, "error", err)
	}))
}

// Wait blocks until every fired effect has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Fire runs fn detached from any group.
func Fire(ctx context.Context, logger *slog.Logger, name string, fn Func) {
	g := &Group{Logger: logger}
	g.Fire(ctx, name, fn)
}
