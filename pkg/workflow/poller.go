package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// poller owns the poll loop of a single workflow.
type poller struct {
	m    *Monitor
	id   string
	kind core.WorkflowKind

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	// handling is set while the loop runs the progress handler.
	handling atomic.Bool
}

func newPoller(m *Monitor, id string, kind core.WorkflowKind) *poller {
	return &poller{m: m, id: id, kind: kind, done: make(chan struct{})}
}

func (p *poller) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	go func() {
		defer close(p.done)
		p.run(ctx)
	}()
}

// stop cancels the loop and waits for it to exit. From inside the progress
// handler it only cancels: the loop exits once the handler returns.
func (p *poller) stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	if p.handling.Load() {
		return
	}
	<-p.done
}

func (p *poller) progress(fn func(core.WorkflowProgress), wf core.WorkflowProgress) {
	p.handling.Store(true)
	defer p.handling.Store(false)
	defer func() {
		if r := recover(); r != nil {
			p.m.logger.Error("workflow progress handler panicked", "id", p.id, "panic", r)
		}
	}()
	fn(wf)
}

func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.m.interval)
	defer ticker.Stop()

	logger := p.m.logger.With("workflow", p.id, "kind", p.kind)
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
		}

		update, err := p.m.source.WorkflowStatus(ctx, p.kind, p.id)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			logger.Warn("workflow poll failed", "error", err, "failures", failures)
			if p.m.retryBudget > 0 && failures >= p.m.retryBudget {
				logger.Error("workflow poll retry budget exhausted", "failures", failures)
				p.m.exhausted(p)
				return
			}
			continue
		}
		if update == nil {
			logger.Warn("workflow poll returned no status")
			continue
		}
		if !update.Status.Valid() {
			logger.Warn("workflow poll returned unknown status", "status", update.Status)
			continue
		}
		failures = 0
		if p.m.apply(p, update) {
			return
		}
	}
}
