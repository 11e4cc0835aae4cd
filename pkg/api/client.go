// Package api is the HTTP boundary to the extraction, fusion, chat and
// workflow backends. Every response is decoded into an explicit schema and
// validated before it leaves this package: a non-2xx answer becomes a
// *core.TransportError, an unreachable backend wraps core.ErrTransport and a
// malformed body becomes a *core.ValidationError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

const maxResponseBytes = 8 << 20

// TokenSource supplies bearer tokens. Authentication itself is owned by an
// external session manager.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL of the backend (e.g. "http://localhost:8000").
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Tokens supplies the bearer token. If nil, requests are unauthenticated.
	Tokens TokenSource
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the backend endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates a backend client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     config.Tokens,
		logger:     logger,
	}, nil
}

// Fuse posts all current sources to the multimodal fusion endpoint.
func (c *Client) Fuse(ctx context.Context, request FuseRequest) (*FuseResponse, error) {
	const path = "/api/multimodal/fuse"
	var response FuseResponse
	if err := c.do(ctx, http.MethodPost, path, request, &response); err != nil {
		return nil, err
	}
	if strings.EqualFold(response.Status, "error") {
		return nil, &core.TransportError{Endpoint: path, StatusCode: http.StatusOK, Message: response.Message}
	}
	if err := response.validate(); err != nil {
		return nil, fmt.Errorf("api: %s: %w", path, err)
	}
	return &response, nil
}

// DigitizerChat sends a turn to the document-digitizer assistant.
func (c *Client) DigitizerChat(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, "/api/digitizer-chatbot/chat", request)
}

// Chat sends a turn to the general assistant.
func (c *Client) Chat(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	return c.chat(ctx, "/api/chatbot/chat", request)
}

func (c *Client) chat(ctx context.Context, path string, request ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(request.Message) == "" {
		return nil, fmt.Errorf("api: %s: %w", path, core.Invalid("message", "empty"))
	}
	var response ChatResponse
	if err := c.do(ctx, http.MethodPost, path, request, &response); err != nil {
		return nil, err
	}
	if strings.EqualFold(response.Status, "error") {
		return nil, &core.TransportError{Endpoint: path, StatusCode: http.StatusOK, Message: response.Message}
	}
	if err := response.validate(); err != nil {
		return nil, fmt.Errorf("api: %s: %w", path, err)
	}
	return &response, nil
}

// WorkflowPath returns the polling endpoint for a workflow kind.
func WorkflowPath(kind core.WorkflowKind, id string) (string, error) {
	escaped := url.PathEscape(id)
	switch kind {
	case core.WorkflowAnalysis:
		return "/api/quantitative-analysis/results/" + escaped, nil
	case core.WorkflowResearch, core.WorkflowPeopleHub:
		return "/api/deep-research/results/" + escaped, nil
	}
	return "", core.Invalid("kind", "unknown workflow kind %q", kind)
}

// WorkflowStatus polls the results endpoint of a workflow.
func (c *Client) WorkflowStatus(ctx context.Context, kind core.WorkflowKind, id string) (*core.WorkflowProgress, error) {
	path, err := WorkflowPath(kind, id)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	var response workflowStatusResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	status, err := parseWorkflowStatus(response.Status)
	if err != nil {
		return nil, fmt.Errorf("api: %s: %w", path, err)
	}

	progress := &core.WorkflowProgress{
		ID:        id,
		Kind:      kind,
		Status:    status,
		Step:      response.CurrentStep,
		Message:   response.Message,
		UpdatedAt: time.Now(),
	}
	if response.Progress != nil {
		progress.Progress = min(max(*response.Progress, 0), 100)
	} else if status == core.WorkflowCompleted {
		progress.Progress = 100
	}
	return progress, nil
}

// Summary fetches the running summary of a chat session.
func (c *Client) Summary(ctx context.Context, sessionID string) (*SummaryResponse, error) {
	path := "/api/chatbot/summary/" + url.PathEscape(sessionID)
	var response SummaryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	if err := response.validate(); err != nil {
		return nil, fmt.Errorf("api: %s: %w", path, err)
	}
	return &response, nil
}

// do performs a JSON request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, requestBody, out any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("api: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("api: token: %w", err)
		}
		if token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("backend request", "method", method, "path", path)
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("api: request to %s %s failed: %w", method, path, errors.Join(core.ErrTransport, err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("api: failed to read response body: %w", errors.Join(core.ErrTransport, err))
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &core.TransportError{Endpoint: path, StatusCode: response.StatusCode, Message: errorMessage(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: %s: %w", path, &core.ValidationError{Field: "response", Reason: err.Error()})
	}
	return nil
}

func errorMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch d := e.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case nil:
	default:
		if encoded, err := json.Marshal(d); err == nil {
			return string(encoded)
		}
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
