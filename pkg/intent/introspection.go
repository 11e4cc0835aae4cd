package intent

import (
	"github.com/aretw0/introspection"
)

// RouterState exposes internal state for observability.
type RouterState struct {
	Phase    Phase  `json:"phase"`
	Attached bool   `json:"attached"`
	Pending  string `json:"pending,omitempty"`
	Routed   uint64 `json:"routed"`
	Dropped  uint64 `json:"dropped"`
}

// State implements introspection.Introspectable.
func (r *Router) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := RouterState{
		Phase:    r.phase,
		Attached: r.target != nil,
		Routed:   r.routed,
		Dropped:  r.dropped,
	}
	if r.pending != nil {
		st.Pending = string(r.pending.Name)
	}
	return st
}

// ComponentType implements introspection.Component.
func (r *Router) ComponentType() string {
	return "intent-router"
}

var _ introspection.Introspectable = (*Router)(nil)
var _ introspection.Component = (*Router)(nil)
