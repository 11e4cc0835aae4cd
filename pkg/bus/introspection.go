package bus

import (
	"github.com/aretw0/introspection"
)

// State exposes internal state for observability.
type BusState struct {
	Mode         Mode   `json:"mode"`
	Subscribers  int    `json:"subscribers"`
	CurrentType  string `json:"current_type,omitempty"`
	PublishCount uint64 `json:"publish_count"`
}

// State implements introspection.Introspectable.
func (b *Bus) State() any {
	mode := b.Mode()

	b.mu.Lock()
	defer b.mu.Unlock()

	st := BusState{
		Mode:         mode,
		Subscribers:  len(b.subs),
		PublishCount: b.publishCount,
	}
	if b.hasCurrent {
		st.CurrentType = string(b.current.Type)
	}
	return st
}

// ComponentType implements introspection.Component.
func (b *Bus) ComponentType() string {
	return "context-bus"
}

var _ introspection.Introspectable = (*Bus)(nil)
var _ introspection.Component = (*Bus)(nil)
