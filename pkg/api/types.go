package api

import (
	"strings"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// FuseRequest is the body of POST /api/multimodal/fuse. Every source is optional.
type FuseRequest struct {
	AudioCDM     *core.CreditAgreementData `json:"audio_cdm,omitempty"`
	AudioText    string                    `json:"audio_text,omitempty"`
	ImageCDM     *core.CreditAgreementData `json:"image_cdm,omitempty"`
	ImageText    string                    `json:"image_text,omitempty"`
	DocumentCDM  *core.CreditAgreementData `json:"document_cdm,omitempty"`
	DocumentText string                    `json:"document_text,omitempty"`
	TextCDM      *core.CreditAgreementData `json:"text_cdm,omitempty"`
	TextInput    string                    `json:"text_input,omitempty"`
	UseLLMFusion bool                      `json:"use_llm_fusion"`
}

// SourceCount returns how many sources the request carries.
func (r FuseRequest) SourceCount() int {
	n := 0
	for _, present := range []bool{
		r.AudioCDM != nil || r.AudioText != "",
		r.ImageCDM != nil || r.ImageText != "",
		r.DocumentCDM != nil || r.DocumentText != "",
		r.TextCDM != nil || r.TextInput != "",
	} {
		if present {
			n++
		}
	}
	return n
}

// FuseResponse is the answer of the fusion endpoint.
type FuseResponse struct {
	Status         string                    `json:"status"`
	Agreement      *core.CreditAgreementData `json:"agreement"`
	SourceTracking map[string]any            `json:"source_tracking,omitempty"`
	Conflicts      []core.Conflict           `json:"conflicts"`
	FusionMethod   string                    `json:"fusion_method,omitempty"`
	ConflictsCount int                       `json:"conflicts_count"`
	Message        string                    `json:"message,omitempty"`
}

func (r *FuseResponse) validate() error {
	if r.Status == "" {
		return core.Invalid("status", "missing")
	}
	if r.Agreement == nil {
		return core.Invalid("agreement", "missing from fusion response")
	}
	if err := r.Agreement.Validate(); err != nil {
		return err
	}
	if r.Conflicts == nil {
		r.Conflicts = []core.Conflict{}
	}
	for i, c := range r.Conflicts {
		if strings.TrimSpace(c.Field) == "" {
			return core.Invalid("conflicts", "entry %d has no field", i)
		}
	}
	if r.ConflictsCount == 0 {
		r.ConflictsCount = len(r.Conflicts)
	}
	return nil
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Message             string                    `json:"message"`
	ConversationHistory []ChatMessage             `json:"conversation_history,omitempty"`
	DealID              string                    `json:"deal_id,omitempty"`
	CDMData             *core.CreditAgreementData `json:"cdm_data,omitempty"`
	DocumentContext     string                    `json:"document_context,omitempty"`
	SessionID           string                    `json:"session_id,omitempty"`
}

// WorkflowLaunch describes a workflow started by a chat turn.
type WorkflowLaunch struct {
	ID     string              `json:"id"`
	Kind   core.WorkflowKind   `json:"kind"`
	Status core.WorkflowStatus `json:"status,omitempty"`
}

// ChatResponse is the answer of a chat endpoint. Some deployments answer in
// "response", others in "reply".
type ChatResponse struct {
	Status           string          `json:"status"`
	Response         string          `json:"response,omitempty"`
	Reply            string          `json:"reply,omitempty"`
	WorkflowLaunched bool            `json:"workflow_launched,omitempty"`
	WorkflowResult   *WorkflowLaunch `json:"workflow_result,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// Text returns the assistant reply.
func (r *ChatResponse) Text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Reply
}

func (r *ChatResponse) validate() error {
	if r.Status == "" {
		return core.Invalid("status", "missing")
	}
	if r.WorkflowLaunched {
		if r.WorkflowResult == nil || strings.TrimSpace(r.WorkflowResult.ID) == "" {
			return core.Invalid("workflow_result", "launched workflow without id")
		}
		if !r.WorkflowResult.Kind.Valid() {
			return core.Invalid("workflow_result.kind", "unknown workflow kind %q", r.WorkflowResult.Kind)
		}
	}
	return nil
}

// workflowStatusResponse is the polling answer of both results endpoints.
type workflowStatusResponse struct {
	Status      string `json:"status"`
	Progress    *int   `json:"progress,omitempty"`
	CurrentStep string `json:"current_step,omitempty"`
	Message     string `json:"message,omitempty"`
}

var statusAliases = map[string]core.WorkflowStatus{
	"in_progress": core.WorkflowRunning,
	"processing":  core.WorkflowRunning,
	"queued":      core.WorkflowPending,
	"error":       core.WorkflowFailed,
	"canceled":    core.WorkflowCancelled,
}

func parseWorkflowStatus(s string) (core.WorkflowStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if st := core.WorkflowStatus(s); st.Valid() {
		return st, nil
	}
	if st, ok := statusAliases[s]; ok {
		return st, nil
	}
	return "", core.Invalid("status", "unknown workflow status %q", s)
}

// SummaryResponse is the answer of GET /api/chatbot/summary/{session_id}.
type SummaryResponse struct {
	Status       string   `json:"status"`
	Summary      string   `json:"summary"`
	KeyPoints    []string `json:"key_points,omitempty"`
	MessageCount int      `json:"message_count,omitempty"`
}

func (r *SummaryResponse) validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return core.Invalid("summary", "missing")
	}
	return nil
}

type errorBody struct {
	Detail  any    `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
