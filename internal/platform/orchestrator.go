// Package platform is the composition root: it builds every orchestration
// component from configuration and wires their reactions together.
package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/Josephrp/creditnexus-sub000/pkg/adapters/fs"
	buslifecycle "github.com/Josephrp/creditnexus-sub000/pkg/adapters/lifecycle"
	"github.com/Josephrp/creditnexus-sub000/pkg/api"
	"github.com/Josephrp/creditnexus-sub000/pkg/bus"
	"github.com/Josephrp/creditnexus-sub000/pkg/chat"
	"github.com/Josephrp/creditnexus-sub000/pkg/config"
	"github.com/Josephrp/creditnexus-sub000/pkg/conflict"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/effect"
	"github.com/Josephrp/creditnexus-sub000/pkg/fusion"
	"github.com/Josephrp/creditnexus-sub000/pkg/intent"
	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
	"github.com/Josephrp/creditnexus-sub000/pkg/workflow"
	"github.com/Josephrp/creditnexus-sub000/pkg/workspace"
)

// Orchestrator owns one instance of every component.
//
// Reactions:
//   - collector change: advisory conflicts recomputed, last fusion result
//     invalidated, workspace updated
//   - fusion events: workspace updated; a fused record is re-broadcast as a
//     loan context
//   - routed intents: delivered to the workspace
//   - workflow progress: each change broadcast as a workflow context, the
//     terminal status once
type Orchestrator struct {
	Bus       *bus.Bus
	Router    *intent.Router
	Collector *sources.Collector
	Detector  *conflict.Detector
	Fusion    *fusion.Coordinator
	Monitor   *workflow.Monitor
	Store     *workspace.Store

	config  config.Config
	logger  *slog.Logger
	chat    chat.Backend
	effects *effect.Group

	mu       sync.Mutex
	teardown []func()
	closed   bool
	// progress holds the last broadcast progress per running workflow.
	progress map[string]core.WorkflowProgress
}

var _ introspection.Introspectable = (*Orchestrator)(nil)

// New builds and wires an Orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.pollInterval > 0 {
		o.config.Workflow.PollInterval = o.pollInterval
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if o.fuser == nil || o.status == nil || o.chat == nil {
		var tokens api.TokenSource
		if token := o.config.Token(); token != "" {
			tokens = api.StaticToken(token)
		}
		client, err := api.NewClient(api.Config{
			BaseURL: o.config.API.BaseURL,
			Tokens:  tokens,
			Logger:  logger.With("component", "api"),
		})
		if err != nil {
			return nil, fmt.Errorf("platform: %w", err)
		}
		if o.fuser == nil {
			o.fuser = client
		}
		if o.status == nil {
			o.status = client
		}
		if o.chat == nil {
			o.chat = client
		}
	}

	busOpts := []bus.Option{bus.WithLogger(logger.With("component", "bus"))}
	if o.channel != nil {
		busOpts = append(busOpts, bus.WithChannel(o.channel))
	}

	orc := &Orchestrator{
		Bus:       bus.New(busOpts...),
		Router:    intent.NewRouter(intent.WithLogger(logger.With("component", "router"))),
		Collector: sources.NewCollector(),
		Detector:  conflict.NewDetector(),
		Fusion: fusion.New(o.fuser,
			fusion.WithLogger(logger.With("component", "fusion")),
			fusion.WithLLMFusion(o.config.Fusion.UseLLM),
		),
		Store:   workspace.NewStore(workspace.WithLogger(logger.With("component", "workspace"))),
		config:  o.config,
		logger:  logger,
		chat:    o.chat,
		effects:  &effect.Group{Logger: logger.With("component", "effect")},
		progress: make(map[string]core.WorkflowProgress),
	}
	orc.Monitor = workflow.New(o.status,
		workflow.WithInterval(o.config.Workflow.PollInterval),
		workflow.WithRetryBudget(o.config.Workflow.RetryBudget),
		workflow.WithLogger(logger.With("component", "workflow")),
		workflow.WithNotifier(orc.workflowFinished),
		workflow.WithProgressHandler(orc.workflowProgress),
	)

	orc.wire()
	return orc, nil
}

func (o *Orchestrator) wire() {
	o.teardown = append(o.teardown,
		o.Router.Attach(o.Store),
		o.Collector.OnChange(o.sourcesChanged),
	)
	o.Fusion.Observe(o.fusionEvent)
}

func (o *Orchestrator) sourcesChanged(snap sources.Snapshot) {
	o.Fusion.Invalidate()
	advisory := o.Detector.DetectSnapshot(snap)
	o.Store.Dispatch(workspace.SourcesChanged{Generation: snap.Generation, Advisory: advisory})
	o.logger.Debug("sources changed", "generation", snap.Generation, "sources", snap.Len(), "conflicts", len(advisory))
}

func (o *Orchestrator) fusionEvent(e fusion.Event) {
	switch e.Type {
	case fusion.EventStarted:
		o.Store.Dispatch(workspace.FusionStarted{})
	case fusion.EventFailed:
		o.Store.Dispatch(workspace.FusionFailed{Err: e.Err})
	case fusion.EventSucceeded:
		o.Store.Dispatch(workspace.FusionSucceeded{Result: e.Result})
		o.broadcastRecord(e.Result.Agreement)
	}
}

func (o *Orchestrator) broadcastRecord(rec *core.CreditAgreementData) {
	if rec == nil {
		return
	}
	c := core.Context{
		Type: core.ContextLoan,
		Loan: &core.LoanPayload{Agreement: rec.Clone()},
	}
	if borrower, ok := rec.FindParty("Borrower"); ok {
		c.Loan.Borrower = borrower.Name
	}
	if rec.DealID != "" || rec.LoanIdentificationNumber != "" {
		c.ID = &core.ContextID{DealID: rec.DealID, LoanID: rec.LoanIdentificationNumber}
	}
	if err := o.Bus.Publish(context.Background(), c); err != nil {
		o.logger.Warn("fused record not broadcast", "error", err)
	}
}

func (o *Orchestrator) workflowFinished(n workflow.Notification) {
	o.logger.Info("workflow finished", "id", n.ID, "kind", n.Kind, "status", n.Status)
	o.mu.Lock()
	delete(o.progress, n.ID)
	o.mu.Unlock()

	wf := n.Progress
	wf.Status = n.Status
	o.broadcastWorkflow(wf)
}

// workflowProgress broadcasts a running workflow whose status, progress or
// step moved since the last poll.
func (o *Orchestrator) workflowProgress(wf core.WorkflowProgress) {
	o.mu.Lock()
	last, seen := o.progress[wf.ID]
	changed := !seen || last.Status != wf.Status || last.Progress != wf.Progress || last.Step != wf.Step
	if changed {
		o.progress[wf.ID] = wf
	}
	o.mu.Unlock()

	if changed {
		o.broadcastWorkflow(wf)
	}
}

func (o *Orchestrator) broadcastWorkflow(wf core.WorkflowProgress) {
	message := wf.Message
	if message == "" {
		message = wf.Step
	}
	err := o.Bus.Publish(context.Background(), core.Context{
		Type: core.ContextWorkflow,
		ID:   &core.ContextID{WorkflowID: wf.ID},
		Workflow: &core.WorkflowPayload{
			Kind:     wf.Kind,
			Status:   wf.Status,
			Progress: wf.Progress,
			Message:  message,
		},
	})
	if err != nil {
		o.logger.Warn("workflow context not broadcast", "id", wf.ID, "error", err)
	}
}

// HandleIntent parses an inbound intent and hands it to the router. Intents
// the routing table rejects are dropped silently; only a malformed context
// is an error.
func (o *Orchestrator) HandleIntent(name string, contextJSON []byte) (bool, error) {
	in, err := intent.ParseIntent(name, contextJSON)
	if err != nil {
		return false, err
	}
	return o.Router.Dispatch(in), nil
}

// Fuse fuses the current sources.
func (o *Orchestrator) Fuse(ctx context.Context) (*fusion.Result, error) {
	snap := o.Collector.Snapshot()
	return o.Fusion.FuseGeneration(ctx, snap.Entries, snap.Generation)
}

// Conflicts returns the list the user should review: the fusion answer for
// the current sources when there is one, the advisory list otherwise.
func (o *Orchestrator) Conflicts() []core.Conflict {
	return o.Store.Snapshot().Conflicts
}

// EditRecord replaces the active record after a manual edit.
func (o *Orchestrator) EditRecord(rec *core.CreditAgreementData) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	o.Fusion.SetRecord(rec)
	o.Store.Dispatch(workspace.RecordEdited{Record: rec})
	return nil
}

// SaveRecord writes the active record to path and returns the path written.
// An empty path writes to the configured output dir, named after the deal id,
// in the configured output format.
func (o *Orchestrator) SaveRecord(path string) (string, error) {
	rec := o.Fusion.Record()
	if rec == nil {
		return "", fmt.Errorf("platform: %w", core.Invalid("record", "no active record to save"))
	}
	if path == "" {
		path = o.config.RecordPath(rec.DealID)
	}
	if err := fs.SaveRecord(path, rec); err != nil {
		return "", err
	}
	return path, nil
}

// Events streams every context published on the bus as a lifecycle event
// until ctx is done.
func (o *Orchestrator) Events(ctx context.Context) (*buslifecycle.BusSource, error) {
	src := buslifecycle.NewSource(o.Bus, buslifecycle.DefaultBuffer)
	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("platform: events: %w", err)
	}
	return src, nil
}

// NewChatSession opens a chat session whose launched workflows are monitored
// and whose replies are broadcast on the bus.
func (o *Orchestrator) NewChatSession(opts ...chat.Option) (*chat.Session, error) {
	base := []chat.Option{
		chat.WithLauncher(o.Monitor),
		chat.WithPublisher(o.Bus),
		chat.WithEffects(o.effects),
		chat.WithLogger(o.logger.With("component", "chat")),
	}
	if rec := o.Fusion.Record(); rec != nil {
		base = append(base, chat.WithRecord(rec), chat.WithDealID(rec.DealID))
	}
	return chat.NewSession(o.chat, append(base, opts...)...)
}

// Inbox builds an inbox over the configured directory feeding the collector.
func (o *Orchestrator) Inbox() (*fs.Inbox, error) {
	patterns, err := o.config.SourcePatterns()
	if err != nil {
		return nil, fmt.Errorf("platform: %w", err)
	}
	return fs.NewInbox(fs.InboxConfig{
		Dir:      o.config.Inbox.Dir,
		Patterns: patterns,
		Logger:   o.logger.With("component", "inbox"),
	}, o.Collector)
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() config.Config {
	return o.config
}

// Close stops workflow polling, detaches every reaction and waits for
// pending effects.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	teardown := o.teardown
	o.teardown = nil
	o.mu.Unlock()

	err := o.Monitor.Close()
	for _, fn := range teardown {
		fn()
	}
	o.effects.Wait()
	o.Bus.Wait()
	return err
}

// OrchestratorState aggregates the state of every component.
type OrchestratorState struct {
	Bus       any `json:"bus"`
	Router    any `json:"router"`
	Collector any `json:"collector"`
	Fusion    any `json:"fusion"`
	Monitor   any `json:"monitor"`
	Workspace any `json:"workspace"`
}

func (o *Orchestrator) State() any {
	return OrchestratorState{
		Bus:       o.Bus.State(),
		Router:    o.Router.State(),
		Collector: o.Collector.State(),
		Fusion:    o.Fusion.State(),
		Monitor:   o.Monitor.State(),
		Workspace: o.Store.State(),
	}
}

func (o *Orchestrator) ComponentType() string {
	return "orchestrator"
}
