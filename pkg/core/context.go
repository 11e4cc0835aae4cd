package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContextType tags the payload shape of a Context.
type ContextType string

const (
	ContextLoan                ContextType = "fdc3.creditnexus.loan"
	ContextGeneratedDocument   ContextType = "finos.creditnexus.generatedDocument"
	ContextChatbot             ContextType = "fdc3.creditnexus.chatbot"
	ContextWorkflow            ContextType = "fdc3.creditnexus.workflow"
	ContextConversationSummary ContextType = "fdc3.creditnexus.conversation_summary"
)

var contextAliases = map[string]ContextType{
	"loan":                 ContextLoan,
	"generateddocument":    ContextGeneratedDocument,
	"chatbot":              ContextChatbot,
	"workflow":             ContextWorkflow,
	"conversation_summary": ContextConversationSummary,
}

// ParseContextType resolves a fully-qualified or short context type name.
func ParseContextType(s string) (ContextType, error) {
	s = strings.TrimSpace(s)
	switch ContextType(s) {
	case ContextLoan, ContextGeneratedDocument, ContextChatbot, ContextWorkflow, ContextConversationSummary:
		return ContextType(s), nil
	}
	if t, ok := contextAliases[strings.ToLower(s)]; ok {
		return t, nil
	}
	if s == "" {
		return "", Invalid("type", "missing context type")
	}
	return "", Invalid("type", "unknown context type %q", s)
}

// ContextID is the correlation block shared by every context shape.
type ContextID struct {
	AgreementID string `json:"agreementId,omitempty"`
	DealID      string `json:"dealId,omitempty"`
	LoanID      string `json:"loanId,omitempty"`
	DocumentID  string `json:"documentId,omitempty"`
	WorkflowID  string `json:"workflowId,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// LoanPayload identifies a loan and optionally carries its record.
type LoanPayload struct {
	Agreement *CreditAgreementData `json:"agreement,omitempty"`
	Borrower  string               `json:"borrower,omitempty"`
	Status    string               `json:"status,omitempty"`
}

// GeneratedDocumentPayload announces a document produced from a template.
type GeneratedDocumentPayload struct {
	DocumentID   string `json:"documentId,omitempty"`
	TemplateID   string `json:"templateId,omitempty"`
	TemplateName string `json:"templateName,omitempty"`
	FilePath     string `json:"filePath,omitempty"`
}

// ChatbotPayload carries one assistant turn.
type ChatbotPayload struct {
	Message  string `json:"message,omitempty"`
	Response string `json:"response,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

// WorkflowPayload announces a long-running workflow.
type WorkflowPayload struct {
	Kind     WorkflowKind   `json:"kind,omitempty"`
	Status   WorkflowStatus `json:"status,omitempty"`
	Progress int            `json:"progress,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// ConversationSummaryPayload is a periodic summary of a chat session.
type ConversationSummaryPayload struct {
	Summary      string   `json:"summary,omitempty"`
	KeyPoints    []string `json:"key_points,omitempty"`
	MessageCount int      `json:"message_count,omitempty"`
}

// Context is an immutable cross-application message. Exactly one payload
// pointer is set and it matches Type (a context may also carry no payload).
type Context struct {
	Type    ContextType `json:"type"`
	ID      *ContextID  `json:"id,omitempty"`
	Name    string      `json:"name,omitempty"`
	Content string      `json:"content,omitempty"`

	Loan     *LoanPayload                `json:"loan,omitempty"`
	Document *GeneratedDocumentPayload   `json:"document,omitempty"`
	Chatbot  *ChatbotPayload             `json:"chatbot,omitempty"`
	Workflow *WorkflowPayload            `json:"workflow,omitempty"`
	Summary  *ConversationSummaryPayload `json:"summary,omitempty"`
}

// ParseContext decodes and validates a context received from outside the process.
func ParseContext(data []byte) (Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return Context{}, &ValidationError{Field: "context", Reason: err.Error()}
	}
	t, err := ParseContextType(string(c.Type))
	if err != nil {
		return Context{}, err
	}
	c.Type = t
	if err := c.Validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}

// Validate checks the tag/payload pairing.
func (c Context) Validate() error {
	if c.Type == "" {
		return Invalid("type", "missing context type")
	}
	set := map[ContextType]bool{
		ContextLoan:                c.Loan != nil,
		ContextGeneratedDocument:   c.Document != nil,
		ContextChatbot:             c.Chatbot != nil,
		ContextWorkflow:            c.Workflow != nil,
		ContextConversationSummary: c.Summary != nil,
	}
	if _, known := set[c.Type]; !known {
		return Invalid("type", "unknown context type %q", c.Type)
	}
	for t, present := range set {
		if present && t != c.Type {
			return Invalid("payload", "%s payload on a %s context", t, c.Type)
		}
	}
	if c.Loan != nil {
		if err := c.Loan.Agreement.Validate(); err != nil {
			return err
		}
	}
	if c.Workflow != nil {
		if c.Workflow.Status != "" && !c.Workflow.Status.Valid() {
			return Invalid("workflow.status", "unknown status %q", c.Workflow.Status)
		}
		if c.Workflow.Progress < 0 || c.Workflow.Progress > 100 {
			return Invalid("workflow.progress", "%d out of range", c.Workflow.Progress)
		}
	}
	return nil
}

// IsZero reports whether c is the empty context.
func (c Context) IsZero() bool {
	return c.Type == "" && c.ID == nil && c.Name == "" && c.Content == "" &&
		c.Loan == nil && c.Document == nil && c.Chatbot == nil && c.Workflow == nil && c.Summary == nil
}

// Clone returns a deep copy so receivers cannot alter the publisher's value.
func (c Context) Clone() Context {
	out := c
	if c.ID != nil {
		id := *c.ID
		out.ID = &id
	}
	if c.Loan != nil {
		l := *c.Loan
		l.Agreement = c.Loan.Agreement.Clone()
		out.Loan = &l
	}
	if c.Document != nil {
		d := *c.Document
		out.Document = &d
	}
	if c.Chatbot != nil {
		m := *c.Chatbot
		out.Chatbot = &m
	}
	if c.Workflow != nil {
		w := *c.Workflow
		out.Workflow = &w
	}
	if c.Summary != nil {
		s := *c.Summary
		s.KeyPoints = append([]string(nil), c.Summary.KeyPoints...)
		out.Summary = &s
	}
	return out
}

// AgreementID returns the agreement correlation id, if any.
func (c Context) AgreementID() string {
	if c.ID == nil {
		return ""
	}
	return strings.TrimSpace(c.ID.AgreementID)
}

// String renders the context as type#correlation for logs and event streams.
func (c Context) String() string {
	if c.ID == nil {
		return string(c.Type)
	}
	for _, id := range []string{c.ID.AgreementID, c.ID.DealID, c.ID.LoanID, c.ID.DocumentID, c.ID.WorkflowID, c.ID.SessionID} {
		if id != "" {
			return fmt.Sprintf("%s#%s", c.Type, id)
		}
	}
	return string(c.Type)
}
