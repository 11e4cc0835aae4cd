package sources

import (
	"github.com/aretw0/introspection"
)

// CollectorState exposes internal state for observability.
type CollectorState struct {
	Kinds      []string `json:"kinds"`
	Generation uint64   `json:"generation"`
	Observers  int      `json:"observers"`
}

// State implements introspection.Introspectable.
func (c *Collector) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kinds := make([]string, 0, len(c.entries))
	for _, e := range c.entriesLocked() {
		kinds = append(kinds, e.Kind.String())
	}
	return CollectorState{
		Kinds:      kinds,
		Generation: c.generation,
		Observers:  len(c.observers),
	}
}

// ComponentType implements introspection.Component.
func (c *Collector) ComponentType() string {
	return "source-collector"
}

var _ introspection.Introspectable = (*Collector)(nil)
var _ introspection.Component = (*Collector)(nil)
