// Package bus implements the context bus: a typed publish/subscribe channel
// holding the single "last broadcast" context of the suite.
//
// Local subscribers are always served synchronously. When a desktop-interop
// Channel is attached and available, each published context is also broadcast
// outbound as a fire-and-forget effect; outbound failures are logged and never
// reach the publisher.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/effect"
)

// Handler receives published contexts.
type Handler func(core.Context)

// Channel is the outbound desktop-interop transport.
type Channel interface {
	// Available reports whether the interop agent is reachable.
	Available() bool
	// Broadcast sends c to the other applications of the suite.
	Broadcast(ctx context.Context, c core.Context) error
}

// Mode is the presence indicator of the bus.
type Mode string

const (
	ModeLocalOnly Mode = "local-only"
	ModeConnected Mode = "connected"
)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus is the context bus. It is safe for concurrent use.
type Bus struct {
	mu           sync.Mutex
	current      core.Context
	hasCurrent   bool
	subs         []subscriber
	nextID       uint64
	publishCount uint64

	channel Channel
	logger  *slog.Logger
	effects *effect.Group
}

// Option configures a Bus.
type Option func(*Bus)

// WithChannel attaches the outbound interop channel.
func WithChannel(ch Channel) Option {
	return func(b *Bus) {
		b.channel = ch
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Bus. Without a channel it runs in local-only mode.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.effects = &effect.Group{Logger: b.logger}
	return b
}

// Publish stores c as the current context and notifies every subscriber in
// subscription order. Only an invalid context is rejected; channel problems
// are never returned.
func (b *Bus) Publish(ctx context.Context, c core.Context) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}

	stored := c.Clone()

	b.mu.Lock()
	b.current = stored
	b.hasCurrent = true
	b.publishCount++
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, stored.Clone())
	}

	b.broadcast(ctx, stored)
	return nil
}

func (b *Bus) deliver(s subscriber, c core.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("context listener panicked", "subscriber", s.id, "context", c.String(), "error", fmt.Errorf("%v", r))
		}
	}()
	s.fn(c)
}

func (b *Bus) broadcast(ctx context.Context, c core.Context) {
	if b.channel == nil || !b.channel.Available() {
		b.logger.Debug("broadcast skipped", "context", c.String(), "reason", core.ErrChannelUnavailable)
		return
	}
	ch := b.channel
	b.effects.Fire(ctx, "broadcast "+string(c.Type), func(ctx context.Context) error {
		if err := ch.Broadcast(ctx, c); err != nil {
			return errors.Join(core.ErrChannelUnavailable, err)
		}
		return nil
	})
}

// Subscribe registers fn and returns a function removing it. The returned
// function may be called any number of times.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Current returns the last published context.
func (b *Bus) Current() (core.Context, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasCurrent {
		return core.Context{}, false
	}
	return b.current.Clone(), true
}

// Clear forgets the current context without notifying anyone.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = core.Context{}
	b.hasCurrent = false
}

// Mode reports whether outbound broadcasts are possible right now.
func (b *Bus) Mode() Mode {
	if b.channel != nil && b.channel.Available() {
		return ModeConnected
	}
	return ModeLocalOnly
}

// Wait blocks until every outbound broadcast fired so far has finished.
func (b *Bus) Wait() {
	b.effects.Wait()
}
