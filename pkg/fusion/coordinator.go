// Package fusion invokes the external fusion backend with every current
// source and owns the resulting unified record.
package fusion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Josephrp/creditnexus-sub000/pkg/api"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Fuser performs the fusion call. *api.Client implements it.
type Fuser interface {
	Fuse(ctx context.Context, request api.FuseRequest) (*api.FuseResponse, error)
}

// Result is a successful fusion.
type Result struct {
	Agreement      *core.CreditAgreementData
	Conflicts      []core.Conflict
	SourceTracking map[string]any
	Method         string
	ConflictsCount int
	// Generation is the collector generation the sources were taken from, or
	// zero when the caller did not supply one.
	Generation uint64
}

// EventType tags coordinator events.
type EventType string

const (
	EventStarted   EventType = "started"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
)

// Event reports coordinator progress to observers.
type Event struct {
	Type   EventType
	Result *Result
	Err    error
}

// Coordinator serializes fusion calls: at most one is in flight.
type Coordinator struct {
	fuser    Fuser
	logger   *slog.Logger
	useLLM   bool
	inFlight atomic.Bool

	mu        sync.RWMutex
	record    *core.CreditAgreementData
	conflicts []core.Conflict
	lastErr   error
	last      *Result
	observers []func(Event)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLMFusion asks the backend to resolve conflicts with an LLM.
func WithLLMFusion(enabled bool) Option {
	return func(c *Coordinator) {
		c.useLLM = enabled
	}
}

// New creates a Coordinator.
func New(fuser Fuser, opts ...Option) *Coordinator {
	c := &Coordinator{
		fuser:  fuser,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe registers fn for Started/Succeeded/Failed events.
func (c *Coordinator) Observe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Fuse sends entries to the backend.
//
// It fails with core.ErrNoSources before any network call when entries is
// empty, and with core.ErrAlreadyInProgress when another call is pending. On
// success the record and conflicts are replaced by the response; on failure
// they are left untouched and the error is kept as LastError.
func (c *Coordinator) Fuse(ctx context.Context, entries []core.SourceEntry) (*Result, error) {
	return c.FuseGeneration(ctx, entries, 0)
}

// FuseGeneration is Fuse for a collector snapshot; the generation is carried
// into the Result so callers can tell which snapshot it belongs to.
func (c *Coordinator) FuseGeneration(ctx context.Context, entries []core.SourceEntry, generation uint64) (*Result, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("fusion: %w", core.ErrNoSources)
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("fusion: %w", core.ErrAlreadyInProgress)
	}
	defer c.inFlight.Store(false)

	request := BuildRequest(entries, c.useLLM)
	c.emit(Event{Type: EventStarted})
	c.logger.Info("fusion started", "sources", request.SourceCount(), "llm", c.useLLM)

	response, err := c.fuser.Fuse(ctx, request)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn("fusion failed", "error", err)
		c.emit(Event{Type: EventFailed, Err: err})
		return nil, fmt.Errorf("fusion: %w", err)
	}

	result := &Result{
		Agreement:      response.Agreement.Clone(),
		Conflicts:      append([]core.Conflict{}, response.Conflicts...),
		SourceTracking: response.SourceTracking,
		Method:         response.FusionMethod,
		ConflictsCount: response.ConflictsCount,
		Generation:     generation,
	}

	c.mu.Lock()
	c.record = result.Agreement.Clone()
	c.conflicts = append([]core.Conflict{}, result.Conflicts...)
	c.lastErr = nil
	c.last = result
	c.mu.Unlock()

	c.logger.Info("fusion completed", "method", result.Method, "conflicts", result.ConflictsCount)
	c.emit(Event{Type: EventSucceeded, Result: result})
	return result, nil
}

// BuildRequest maps entries onto the fusion request body. Later entries of
// the same kind win.
func BuildRequest(entries []core.SourceEntry, useLLM bool) api.FuseRequest {
	request := api.FuseRequest{UseLLMFusion: useLLM}
	for _, e := range entries {
		rec := e.Record.Clone()
		switch e.Kind {
		case core.SourceAudio:
			request.AudioCDM, request.AudioText = rec, e.RawText
		case core.SourceImage:
			request.ImageCDM, request.ImageText = rec, e.RawText
		case core.SourceDocument:
			request.DocumentCDM, request.DocumentText = rec, e.RawText
		case core.SourceText:
			request.TextCDM, request.TextInput = rec, e.RawText
		}
	}
	return request
}

// Processing reports whether a fusion call is in flight.
func (c *Coordinator) Processing() bool {
	return c.inFlight.Load()
}

// Record returns a copy of the active unified record.
func (c *Coordinator) Record() *core.CreditAgreementData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.Clone()
}

// SetRecord replaces the active record, e.g. after a manual edit.
func (c *Coordinator) SetRecord(rec *core.CreditAgreementData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = rec.Clone()
}

// Conflicts returns the conflict list of the last successful fusion.
func (c *Coordinator) Conflicts() []core.Conflict {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conflicts == nil {
		return nil
	}
	return append([]core.Conflict{}, c.conflicts...)
}

// LastError returns the error of the last failed call, cleared on success.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Last returns the last successful result.
func (c *Coordinator) Last() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Invalidate forgets the last result because the sources it was computed
// from have changed. The active record stays.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	c.conflicts = nil
}

func (c *Coordinator) emit(e Event) {
	c.mu.RLock()
	observers := append([]func(Event){}, c.observers...)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(e)
	}
}
