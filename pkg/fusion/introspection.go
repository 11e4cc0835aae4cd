package fusion

import (
	"github.com/aretw0/introspection"
)

// CoordinatorState exposes internal state for observability.
type CoordinatorState struct {
	Processing bool   `json:"processing"`
	HasRecord  bool   `json:"has_record"`
	Conflicts  int    `json:"conflicts"`
	LastError  string `json:"last_error,omitempty"`
	Method     string `json:"method,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Coordinator) State() any {
	processing := c.Processing()

	c.mu.RLock()
	defer c.mu.RUnlock()

	st := CoordinatorState{
		Processing: processing,
		HasRecord:  c.record != nil,
		Conflicts:  len(c.conflicts),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if c.last != nil {
		st.Method = c.last.Method
	}
	return st
}

// ComponentType implements introspection.Component.
func (c *Coordinator) ComponentType() string {
	return "fusion-coordinator"
}

var _ introspection.Introspectable = (*Coordinator)(nil)
var _ introspection.Component = (*Coordinator)(nil)
