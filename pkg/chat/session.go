// Package chat drives conversations with the assistant endpoints and turns
// their side products (launched workflows, summaries) into bus contexts.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Josephrp/creditnexus-sub000/pkg/api"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/effect"
)

// Summary cadence: once the history holds SummaryMinMessages messages, every
// SummaryEvery-th message triggers a summary fetch.
const (
	SummaryMinMessages = 10
	SummaryEvery       = 20
)

// Mode selects the chat endpoint.
type Mode string

const (
	ModeDigitizer Mode = "digitizer"
	ModeGeneral   Mode = "general"
)

// Backend is the subset of *api.Client a session talks to.
type Backend interface {
	DigitizerChat(ctx context.Context, request api.ChatRequest) (*api.ChatResponse, error)
	Chat(ctx context.Context, request api.ChatRequest) (*api.ChatResponse, error)
	Summary(ctx context.Context, sessionID string) (*api.SummaryResponse, error)
}

// Launcher starts monitoring a workflow. *workflow.Monitor implements it.
type Launcher interface {
	Launch(id string, kind core.WorkflowKind) error
}

// Publisher broadcasts contexts. *bus.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, c core.Context) error
}

// Session is one conversation.
type Session struct {
	id       string
	mode     Mode
	dealID   string
	document string
	record   *core.CreditAgreementData

	backend   Backend
	launcher  Launcher
	publisher Publisher
	effects   *effect.Group
	logger    *slog.Logger

	sendMu  sync.Mutex
	mu      sync.Mutex
	history []api.ChatMessage
}

// Option configures a Session.
type Option func(*Session)

func WithMode(mode Mode) Option {
	return func(s *Session) { s.mode = mode }
}

func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func WithDealID(id string) Option {
	return func(s *Session) { s.dealID = id }
}

// WithDocumentContext attaches document text sent along with every turn.
func WithDocumentContext(text string) Option {
	return func(s *Session) { s.document = text }
}

// WithRecord attaches the record under discussion.
func WithRecord(rec *core.CreditAgreementData) Option {
	return func(s *Session) { s.record = rec.Clone() }
}

func WithLauncher(l Launcher) Option {
	return func(s *Session) { s.launcher = l }
}

func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithEffects tracks summary fetches in g so the owner can wait for them.
func WithEffects(g *effect.Group) Option {
	return func(s *Session) {
		if g != nil {
			s.effects = g
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session with a fresh id.
func NewSession(backend Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("chat: %w", core.Invalid("backend", "missing"))
	}
	s := &Session{
		id:      uuid.NewString(),
		mode:    ModeDigitizer,
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode != ModeDigitizer && s.mode != ModeGeneral {
		return nil, fmt.Errorf("chat: %w", core.Invalid("mode", "unknown chat mode %q", s.mode))
	}
	if s.effects == nil {
		s.effects = &effect.Group{}
	}
	if s.effects.Logger == nil {
		s.effects.Logger = s.logger
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Mode() Mode { return s.mode }

// History returns a copy of the conversation so far.
func (s *Session) History() []api.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ChatMessage(nil), s.history...)
}

// Send posts one user turn. Turns are serialized per session. On transport
// failure the user message stays in the history and the error is returned.
func (s *Session) Send(ctx context.Context, text string) (*api.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("chat: %w", core.Invalid("message", "empty"))
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	prior := append([]api.ChatMessage(nil), s.history...)
	s.history = append(s.history, api.ChatMessage{Role: "user", Content: text})
	count := len(s.history)
	s.mu.Unlock()
	s.maybeSummarize(ctx, count)

	request := api.ChatRequest{
		Message:             text,
		ConversationHistory: prior,
		DealID:              s.dealID,
		CDMData:             s.record,
		DocumentContext:     s.document,
		SessionID:           s.id,
	}

	var (
		resp *api.ChatResponse
		err  error
	)
	if s.mode == ModeGeneral {
		resp, err = s.backend.Chat(ctx, request)
	} else {
		resp, err = s.backend.DigitizerChat(ctx, request)
	}
	if err != nil {
		s.logger.Warn("chat turn failed", "session", s.id, "error", err)
		return nil, fmt.Errorf("chat: %w", err)
	}

	reply := resp.Text()
	s.mu.Lock()
	s.history = append(s.history, api.ChatMessage{Role: "assistant", Content: reply})
	count = len(s.history)
	s.mu.Unlock()

	s.publish(ctx, core.Context{
		Type:    core.ContextChatbot,
		ID:      &core.ContextID{SessionID: s.id, DealID: s.dealID},
		Chatbot: &core.ChatbotPayload{Message: text, Response: reply, Mode: string(s.mode)},
	})

	if resp.WorkflowLaunched && resp.WorkflowResult != nil {
		s.launched(ctx, *resp.WorkflowResult)
	}

	s.maybeSummarize(ctx, count)
	return resp, nil
}

func (s *Session) launched(ctx context.Context, wf api.WorkflowLaunch) {
	s.logger.Info("chat launched workflow", "session", s.id, "workflow", wf.ID, "kind", wf.Kind)
	if s.launcher != nil {
		if err := s.launcher.Launch(wf.ID, wf.Kind); err != nil {
			s.logger.Warn("workflow launch not monitored", "workflow", wf.ID, "error", err)
		}
	}
	s.publish(ctx, core.Context{
		Type: core.ContextWorkflow,
		ID:   &core.ContextID{WorkflowID: wf.ID, SessionID: s.id, DealID: s.dealID},
		Workflow: &core.WorkflowPayload{
			Kind:   wf.Kind,
			Status: core.WorkflowRunning,
		},
	})
}

// SummaryDue reports whether a history of n messages triggers a summary.
func SummaryDue(n int) bool {
	return n >= SummaryMinMessages && n%SummaryEvery == 0
}

func (s *Session) maybeSummarize(ctx context.Context, count int) {
	if !SummaryDue(count) {
		return
	}
	s.effects.Fire(ctx, "chat-summary", func(ctx context.Context) error {
		summary, err := s.backend.Summary(ctx, s.id)
		if err != nil {
			return err
		}
		if summary.MessageCount == 0 {
			summary.MessageCount = count
		}
		s.publish(ctx, core.Context{
			Type: core.ContextConversationSummary,
			ID:   &core.ContextID{SessionID: s.id, DealID: s.dealID},
			Summary: &core.ConversationSummaryPayload{
				Summary:      summary.Summary,
				KeyPoints:    summary.KeyPoints,
				MessageCount: summary.MessageCount,
			},
		})
		return nil
	})
}

func (s *Session) publish(ctx context.Context, c core.Context) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.logger.Warn("chat context not published", "type", c.Type, "error", err)
	}
}

// Wait blocks until pending summary fetches finished.
func (s *Session) Wait() {
	s.effects.Wait()
}
