package creditnexus

import (
	"log/slog"
	"time"

	"github.com/Josephrp/creditnexus-sub000/internal/platform"
	"github.com/Josephrp/creditnexus-sub000/pkg/bus"
	"github.com/Josephrp/creditnexus-sub000/pkg/chat"
	"github.com/Josephrp/creditnexus-sub000/pkg/config"
	"github.com/Josephrp/creditnexus-sub000/pkg/fusion"
	"github.com/Josephrp/creditnexus-sub000/pkg/workflow"
)

// --- Types ---

// Orchestrator is a public alias for the composition root.
type Orchestrator = platform.Orchestrator

// Config is a public alias for the configuration file layout.
type Config = config.Config

// --- Configuration ---

// Option defines a functional option for configuring the Orchestrator.
type Option = platform.Option

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return platform.WithConfig(cfg)
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithChannel attaches the desktop-interop channel.
func WithChannel(ch bus.Channel) Option {
	return platform.WithChannel(ch)
}

// WithFuser overrides the fusion backend.
func WithFuser(f fusion.Fuser) Option {
	return platform.WithFuser(f)
}

// WithStatusSource overrides the workflow status backend.
func WithStatusSource(s workflow.StatusSource) Option {
	return platform.WithStatusSource(s)
}

// WithChatBackend overrides the chat backend.
func WithChatBackend(b chat.Backend) Option {
	return platform.WithChatBackend(b)
}

// WithPollInterval overrides the workflow polling cadence.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithLLMFusion asks the backend for LLM-assisted fusion.
func WithLLMFusion(enabled bool) Option {
	return platform.WithLLMFusion(enabled)
}

// --- Construction ---

// New builds a wired Orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	return platform.New(opts...)
}

// LoadConfig loads path, or the nearest creditnexus.yaml above the working
// directory, or the defaults.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}
