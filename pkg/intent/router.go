package intent

import (
	"io"
	"log/slog"
	"sync"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Phase is the router state.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDispatching Phase = "dispatching"
)

// Target receives routing decisions. The workspace store implements it.
type Target interface {
	ApplyRoute(Decision)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(Decision)

func (f TargetFunc) ApplyRoute(d Decision) { f(d) }

// Router delivers intents to the attached target at most once.
//
// Intents arriving while no target is attached, or while a previous intent
// is being delivered, wait in a single-slot pending register; a newer arrival
// overwrites an older one. The register is drained once, and cleared before
// delivery, when a target attaches or Drain is called.
type Router struct {
	mu      sync.Mutex
	target  Target
	attach  uint64
	pending *core.Intent
	phase   Phase
	logger  *slog.Logger

	routed  uint64
	dropped uint64
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates an idle router with no target.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		phase:  PhaseIdle,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch routes in to the target, or buffers it when the router cannot
// deliver right now. It reports whether the intent was delivered.
func (r *Router) Dispatch(in core.Intent) bool {
	r.mu.Lock()
	if r.target == nil || r.phase == PhaseDispatching {
		if r.pending != nil {
			r.logger.Debug("pending intent overwritten", "previous", r.pending.Name, "intent", in.Name)
		}
		pending := in
		r.pending = &pending
		r.mu.Unlock()
		return false
	}
	r.phase = PhaseDispatching
	target := r.target
	r.mu.Unlock()

	delivered := r.deliver(target, in)
	r.finish()
	return delivered
}

// Attach sets the delivery target and drains the pending register. The
// returned function detaches the target if it is still the current one.
func (r *Router) Attach(t Target) (detach func()) {
	r.mu.Lock()
	r.target = t
	r.attach++
	token := r.attach
	r.mu.Unlock()

	r.Drain()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.attach == token {
			r.target = nil
		}
	}
}

// Drain delivers the buffered intent, if any. It reports whether one was delivered.
func (r *Router) Drain() bool {
	r.mu.Lock()
	if r.pending == nil || r.target == nil || r.phase == PhaseDispatching {
		r.mu.Unlock()
		return false
	}
	in := *r.pending
	r.pending = nil
	r.phase = PhaseDispatching
	target := r.target
	r.mu.Unlock()

	delivered := r.deliver(target, in)
	r.finish()
	return delivered
}

// Pending returns the buffered intent.
func (r *Router) Pending() (core.Intent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return core.Intent{}, false
	}
	return *r.pending, true
}

// Phase returns the current router phase.
func (r *Router) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Router) deliver(target Target, in core.Intent) bool {
	d, ok := Route(in)
	if !ok {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Debug("intent dropped", "intent", in.Name, "context", in.Context.String())
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("route target panicked", "intent", in.Name, "panic", rec)
		}
	}()
	target.ApplyRoute(d)

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
	r.logger.Debug("intent routed", "intent", in.Name, "view", d.View)
	return true
}

// finish returns to idle and delivers an intent queued during dispatch.
func (r *Router) finish() {
	r.mu.Lock()
	r.phase = PhaseIdle
	queued := r.pending != nil && r.target != nil
	r.mu.Unlock()

	if queued {
		r.Drain()
	}
}
