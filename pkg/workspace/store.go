package workspace

import (
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/Josephrp/creditnexus-sub000/pkg/intent"
)

var (
	_ intent.Target                = (*Store)(nil)
	_ introspection.Introspectable = (*Store)(nil)
)

// Store holds the current State and applies actions through Reduce.
type Store struct {
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInitial seeds the store.
func WithInitial(state State) Option {
	return func(s *Store) {
		s.state = state.Clone()
	}
}

// NewStore creates a Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies a and notifies listeners with the new state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := make([]func(State), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("workspace action", "action", actionName(a), "version", next.Version, "view", next.View)
	for _, fn := range listeners {
		fn(next.Clone())
	}
	return next.Clone()
}

// ApplyRoute lets the router deliver decisions straight into the store.
func (s *Store) ApplyRoute(d intent.Decision) {
	s.Dispatch(RouteApplied{Decision: d})
}

// State returns a copy of the current state.
func (s *Store) State() any {
	return s.Snapshot()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) ComponentType() string {
	return "workspace"
}

// Subscribe registers fn for every future state. Listeners run in
// registration order on the dispatching goroutine.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func actionName(a Action) string {
	switch a.(type) {
	case RouteApplied:
		return "route_applied"
	case SourcesChanged:
		return "sources_changed"
	case FusionStarted:
		return "fusion_started"
	case FusionSucceeded:
		return "fusion_succeeded"
	case FusionFailed:
		return "fusion_failed"
	case RecordEdited:
		return "record_edited"
	case ErrorDismissed:
		return "error_dismissed"
	case ContextCleared:
		return "context_cleared"
	}
	return "unknown"
}
