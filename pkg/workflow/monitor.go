// Package workflow monitors long-running backend workflows.
//
// Each workflow moves pending -> running -> {completed | failed | cancelled}.
// A running workflow owns exactly one poll loop; the loop stops as soon as a
// terminal status is observed, the workflow is cancelled, or the monitor is
// closed. Every terminal transition produces exactly one Notification.
package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 3 * time.Second

// StatusSource reads the current status of a workflow. *api.Client implements it.
type StatusSource interface {
	WorkflowStatus(ctx context.Context, kind core.WorkflowKind, id string) (*core.WorkflowProgress, error)
}

// Notification announces a terminal transition.
type Notification struct {
	ID       string
	Kind     core.WorkflowKind
	Status   core.WorkflowStatus
	Progress core.WorkflowProgress
}

// Monitor tracks workflows and runs their poll loops.
type Monitor struct {
	source      StatusSource
	interval    time.Duration
	retryBudget int
	logger      *slog.Logger
	notify      func(Notification)
	onProgress  func(core.WorkflowProgress)
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	workflows map[string]*core.WorkflowProgress
	pollers   map[string]*poller
	closed    bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRetryBudget stops a poll loop after n consecutive failed polls,
// leaving the workflow running. Zero means unbounded.
func WithRetryBudget(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.retryBudget = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNotifier receives terminal notifications. It runs on the poll
// goroutine (or the Cancel caller) and must not call Close.
func WithNotifier(fn func(Notification)) Option {
	return func(m *Monitor) {
		m.notify = fn
	}
}

// WithProgressHandler receives every non-terminal progress update. It runs on
// the poll goroutine. It may Cancel or relaunch its own workflow; the poll
// loop stops once it returns.
func WithProgressHandler(fn func(core.WorkflowProgress)) Option {
	return func(m *Monitor) {
		m.onProgress = fn
	}
}

// New creates a Monitor polling source.
func New(source StatusSource, opts ...Option) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		source:    source,
		interval:  DefaultInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		workflows: make(map[string]*core.WorkflowProgress),
		pollers:   make(map[string]*poller),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track registers a workflow in the pending state without polling it.
func (m *Monitor) Track(id string, kind core.WorkflowKind) error {
	if err := validate(id, kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("workflow: %w", core.ErrMonitorClosed)
	}
	if _, ok := m.workflows[id]; !ok {
		m.workflows[id] = &core.WorkflowProgress{ID: id, Kind: kind, Status: core.WorkflowPending, UpdatedAt: m.now()}
	}
	return nil
}

// Launch moves the workflow to running and starts its poll loop. An existing
// loop for the same id is stopped first. Launching a workflow that already
// reached a terminal state is rejected.
func (m *Monitor) Launch(id string, kind core.WorkflowKind) error {
	if err := validate(id, kind); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("workflow: %w", core.ErrMonitorClosed)
	}
	if wf, ok := m.workflows[id]; ok && wf.Status.IsTerminal() {
		m.mu.Unlock()
		return fmt.Errorf("workflow: %w", core.Invalid("status", "workflow %s already %s", id, wf.Status))
	}
	previous := m.pollers[id]
	delete(m.pollers, id)
	m.mu.Unlock()

	if previous != nil {
		previous.stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("workflow: %w", core.ErrMonitorClosed)
	}
	wf, ok := m.workflows[id]
	if !ok {
		wf = &core.WorkflowProgress{ID: id, Kind: kind}
		m.workflows[id] = wf
	}
	wf.Kind = kind
	wf.Status = core.WorkflowRunning
	wf.UpdatedAt = m.now()

	p := newPoller(m, id, kind)
	m.pollers[id] = p
	p.start(m.ctx)

	m.logger.Info("workflow launched", "id", id, "kind", kind, "interval", m.interval)
	return nil
}

// Cancel moves a running (or pending) workflow to cancelled locally, stops
// its poll loop and notifies once. The backend is not asked to abort.
func (m *Monitor) Cancel(id string) error {
	m.mu.Lock()
	wf, ok := m.workflows[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("workflow: %s: %w", id, core.ErrUnknownWorkflow)
	}
	if wf.Status.IsTerminal() {
		m.mu.Unlock()
		return nil
	}
	wf.Status = core.WorkflowCancelled
	wf.UpdatedAt = m.now()
	n := Notification{ID: id, Kind: wf.Kind, Status: wf.Status, Progress: *wf}
	p := m.pollers[id]
	delete(m.pollers, id)
	m.mu.Unlock()

	if p != nil {
		p.stop()
	}
	m.logger.Info("workflow cancelled", "id", id)
	m.emit(n)
	return nil
}

// Close stops every poll loop and waits for them. No poll happens after
// Close returns and further launches fail with core.ErrMonitorClosed.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pollers := make([]*poller, 0, len(m.pollers))
	for id, p := range m.pollers {
		pollers = append(pollers, p)
		delete(m.pollers, id)
	}
	m.mu.Unlock()

	m.cancel()
	for _, p := range pollers {
		p.stop()
	}
	return nil
}

// Get returns the last known progress of a workflow.
func (m *Monitor) Get(id string) (core.WorkflowProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[id]
	if !ok {
		return core.WorkflowProgress{}, false
	}
	return *wf, true
}

// List returns every tracked workflow ordered by id.
func (m *Monitor) List() []core.WorkflowProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.WorkflowProgress, 0, len(m.workflows))
	for _, wf := range m.workflows {
		out = append(out, *wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Polling reports whether a poll loop is active for id.
func (m *Monitor) Polling(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pollers[id]
	return ok
}

// apply records a poll result. It reports whether the loop must stop.
func (m *Monitor) apply(p *poller, update *core.WorkflowProgress) bool {
	m.mu.Lock()
	if m.pollers[p.id] != p {
		m.mu.Unlock()
		return true
	}
	wf := m.workflows[p.id]
	if wf.Status.IsTerminal() {
		delete(m.pollers, p.id)
		m.mu.Unlock()
		return true
	}

	if update.Step != "" {
		wf.Step = update.Step
	}
	if update.Message != "" {
		wf.Message = update.Message
	}
	if update.Progress > wf.Progress || update.Status.IsTerminal() {
		wf.Progress = update.Progress
	}
	wf.UpdatedAt = m.now()

	if !update.Status.IsTerminal() {
		snapshot := *wf
		m.mu.Unlock()
		if m.onProgress != nil {
			p.progress(m.onProgress, snapshot)
		}
		return false
	}

	wf.Status = update.Status
	n := Notification{ID: wf.ID, Kind: wf.Kind, Status: wf.Status, Progress: *wf}
	delete(m.pollers, p.id)
	m.mu.Unlock()

	m.logger.Info("workflow finished", "id", n.ID, "status", n.Status)
	m.emit(n)
	return true
}

// exhausted stops tracking p after its retry budget ran out.
func (m *Monitor) exhausted(p *poller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollers[p.id] == p {
		delete(m.pollers, p.id)
	}
}

func (m *Monitor) emit(n Notification) {
	if m.notify == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("workflow notifier panicked", "id", n.ID, "panic", r)
		}
	}()
	m.notify(n)
}

func validate(id string, kind core.WorkflowKind) error {
	if id == "" {
		return fmt.Errorf("workflow: %w", core.Invalid("id", "missing"))
	}
	if !kind.Valid() {
		return fmt.Errorf("workflow: %w", core.Invalid("kind", "unknown workflow kind %q", kind))
	}
	return nil
}
