package platform

import (
	"log/slog"
	"time"

	"github.com/Josephrp/creditnexus-sub000/pkg/bus"
	"github.com/Josephrp/creditnexus-sub000/pkg/chat"
	"github.com/Josephrp/creditnexus-sub000/pkg/config"
	"github.com/Josephrp/creditnexus-sub000/pkg/fusion"
	"github.com/Josephrp/creditnexus-sub000/pkg/workflow"
)

// options holds the internal configuration of an Orchestrator.
type options struct {
	config  config.Config
	logger  *slog.Logger
	channel bus.Channel

	// backends default to an api.Client built from config
	fuser  fusion.Fuser
	status workflow.StatusSource
	chat   chat.Backend

	pollInterval time.Duration
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*options)

func defaultOptions() *options {
	return &options{config: config.Default()}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithChannel attaches the outbound desktop-interop channel to the bus.
// Without it the bus runs in local-only mode.
func WithChannel(ch bus.Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// WithFuser overrides the fusion backend (e.g. a mock in tests).
func WithFuser(f fusion.Fuser) Option {
	return func(o *options) {
		o.fuser = f
	}
}

// WithStatusSource overrides the workflow status backend.
func WithStatusSource(s workflow.StatusSource) Option {
	return func(o *options) {
		o.status = s
	}
}

// WithChatBackend overrides the chat backend.
func WithChatBackend(b chat.Backend) Option {
	return func(o *options) {
		o.chat = b
	}
}

// WithPollInterval overrides config.Workflow.PollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithLLMFusion overrides config.Fusion.UseLLM.
func WithLLMFusion(enabled bool) Option {
	return func(o *options) {
		o.config.Fusion.UseLLM = enabled
	}
}
