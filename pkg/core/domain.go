// Package core holds the domain model shared by every orchestration component:
// contexts and intents from the interop bus, per-source extraction entries,
// field conflicts and long-running workflow progress.
package core

import (
	"fmt"
	"strings"
	"time"
)

// IntentName enumerates the intents the router understands.
type IntentName string

const (
	IntentViewLoanAgreement      IntentName = "ViewLoanAgreement"
	IntentApproveLoanAgreement   IntentName = "ApproveLoanAgreement"
	IntentViewESGAnalytics       IntentName = "ViewESGAnalytics"
	IntentExtractCreditAgreement IntentName = "ExtractCreditAgreement"
	IntentViewPortfolio          IntentName = "ViewPortfolio"
)

// Intent is a fire-once action carrying a Context.
type Intent struct {
	Name    IntentName
	Context Context
}

// View is an application view an intent can select.
type View string

const (
	ViewNone      View = ""
	ViewLibrary   View = "library"
	ViewESG       View = "esg"
	ViewDigitizer View = "digitizer"
	ViewDashboard View = "dashboard"
)

// SourceKind identifies an extraction channel. The numeric order is the
// canonical iteration order everywhere (collector entries, conflict values).
type SourceKind int

const (
	SourceAudio SourceKind = iota
	SourceImage
	SourceDocument
	SourceText
)

var sourceKindNames = [...]string{"audio", "image", "document", "text"}

// SourceKinds returns every kind in canonical order.
func SourceKinds() []SourceKind {
	return []SourceKind{SourceAudio, SourceImage, SourceDocument, SourceText}
}

func (k SourceKind) String() string {
	if k < 0 || int(k) >= len(sourceKindNames) {
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
	return sourceKindNames[k]
}

// Valid reports whether k is one of the four known kinds.
func (k SourceKind) Valid() bool {
	return k >= SourceAudio && k <= SourceText
}

// ParseSourceKind maps "audio", "image", "document" or "text" to its kind.
func ParseSourceKind(s string) (SourceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range sourceKindNames {
		if name == s {
			return SourceKind(i), nil
		}
	}
	return 0, Invalid("source kind", "unknown source kind %q", s)
}

func (k SourceKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid source kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *SourceKind) UnmarshalText(b []byte) error {
	parsed, err := ParseSourceKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SourceEntry is the latest extraction result of one source.
type SourceEntry struct {
	Kind       SourceKind           `json:"kind"`
	RawText    string               `json:"raw_text,omitempty"`
	Record     *CreditAgreementData `json:"record,omitempty"`
	Status     ExtractionStatus     `json:"status,omitempty"`
	Confidence *float64             `json:"confidence,omitempty"`
	CapturedAt time.Time            `json:"captured_at"`
}

// Validate checks kind, status and confidence range.
func (e SourceEntry) Validate() error {
	if !e.Kind.Valid() {
		return Invalid("kind", "unknown source kind %d", int(e.Kind))
	}
	if !e.Status.Valid() {
		return Invalid("status", "unknown extraction status %q", e.Status)
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return Invalid("confidence", "%v outside [0,1]", *e.Confidence)
	}
	return e.Record.Validate()
}

// Clone deep-copies the entry.
func (e SourceEntry) Clone() SourceEntry {
	out := e
	out.Record = e.Record.Clone()
	out.Confidence = cloneFloat(e.Confidence)
	return out
}

// ConflictValue is one source's opinion on a conflicting field.
type ConflictValue struct {
	Value      any        `json:"value"`
	Source     SourceKind `json:"source"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// Conflict is a field on which two or more sources disagree.
type Conflict struct {
	Field         string          `json:"field"`
	Values        []ConflictValue `json:"values"`
	ResolvedValue any             `json:"resolved_value,omitempty"`
}

// Resolved reports whether fusion chose a value for the field.
func (c Conflict) Resolved() bool {
	return c.ResolvedValue != nil
}

// WorkflowKind enumerates the long-running backend workflows.
type WorkflowKind string

const (
	WorkflowResearch  WorkflowKind = "research"
	WorkflowAnalysis  WorkflowKind = "analysis"
	WorkflowPeopleHub WorkflowKind = "peoplehub"
)

// Valid reports whether k is a known workflow kind.
func (k WorkflowKind) Valid() bool {
	switch k {
	case WorkflowResearch, WorkflowAnalysis, WorkflowPeopleHub:
		return true
	}
	return false
}

// WorkflowStatus is the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowPending, WorkflowRunning, WorkflowCompleted, WorkflowFailed, WorkflowCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowCancelled
}

// WorkflowProgress is the last known state of a workflow.
type WorkflowProgress struct {
	ID        string         `json:"id"`
	Kind      WorkflowKind   `json:"kind"`
	Status    WorkflowStatus `json:"status"`
	Step      string         `json:"step,omitempty"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
