package fs

import (
	"slices"

	"github.com/aretw0/introspection"
)

// InboxState exposes the inbox for observability.
type InboxState struct {
	Dir      string            `json:"dir"`
	Patterns []string          `json:"patterns"`
	Watching bool              `json:"watching"`
	Origins  map[string]string `json:"origins"`
	Loaded   int               `json:"loaded"`
	Failed   int               `json:"failed"`
}

// State implements introspection.Introspectable.
func (in *Inbox) State() any {
	in.mu.Lock()
	defer in.mu.Unlock()

	patterns := make([]string, 0, len(in.config.Patterns))
	for p := range in.config.Patterns {
		patterns = append(patterns, p)
	}
	slices.Sort(patterns)

	origins := make(map[string]string, len(in.origin))
	for kind, path := range in.origin {
		origins[kind.String()] = path
	}

	return InboxState{
		Dir:      in.config.Dir,
		Patterns: patterns,
		Watching: in.watching,
		Origins:  origins,
		Loaded:   in.loaded,
		Failed:   in.failed,
	}
}

// ComponentType implements introspection.Component.
func (in *Inbox) ComponentType() string {
	return "source-inbox"
}

var _ introspection.Introspectable = (*Inbox)(nil)
var _ introspection.Component = (*Inbox)(nil)
