// Package workspace is the explicit state container of the orchestration
// layer. Every transition goes through Reduce, which is pure: it never
// mutates its input and shares no mutable data with the state it returns.
package workspace

import (
	"github.com/Josephrp/creditnexus-sub000/pkg/conflict"
	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/fusion"
	"github.com/Josephrp/creditnexus-sub000/pkg/intent"
)

// State is what the active view renders.
type State struct {
	View   core.View                 `json:"view"`
	Record *core.CreditAgreementData `json:"record,omitempty"`

	// Conflicts is the list shown to the user: Authoritative once fusion
	// answered for the current sources, Advisory otherwise.
	Conflicts     []core.Conflict `json:"conflicts,omitempty"`
	Advisory      []core.Conflict `json:"advisory,omitempty"`
	Authoritative []core.Conflict `json:"authoritative,omitempty"`

	Processing    bool   `json:"processing"`
	Error         string `json:"error,omitempty"`
	StagedContent string `json:"staged_content,omitempty"`
	Generation    uint64 `json:"generation"`
	Version       uint64 `json:"version"`
}

// Action is a state transition request.
type Action interface {
	action()
}

// RouteApplied switches view after the router accepted an intent.
type RouteApplied struct {
	Decision intent.Decision
}

// SourcesChanged carries the advisory conflicts of a new collector generation.
// A generation older than the current one is ignored.
type SourcesChanged struct {
	Generation uint64
	Advisory   []core.Conflict
}

type FusionStarted struct{}

// FusionSucceeded applies a fusion result.
type FusionSucceeded struct {
	Result *fusion.Result
}

// FusionFailed records a fusion error. The record is kept.
type FusionFailed struct {
	Err error
}

// RecordEdited replaces the record after a manual edit.
type RecordEdited struct {
	Record *core.CreditAgreementData
}

type ErrorDismissed struct{}

// ContextCleared resets the view, the record and the staged content.
type ContextCleared struct{}

func (RouteApplied) action()    {}
func (SourcesChanged) action()  {}
func (FusionStarted) action()   {}
func (FusionSucceeded) action() {}
func (FusionFailed) action()    {}
func (RecordEdited) action()    {}
func (ErrorDismissed) action()  {}
func (ContextCleared) action()  {}

// Reduce returns the state that follows s after a.
func Reduce(s State, a Action) State {
	next := s.clone()
	next.Version++

	switch a := a.(type) {
	case RouteApplied:
		next.View = a.Decision.View
		if a.Decision.Record != nil {
			next.Record = a.Decision.Record.Clone()
		}
		if a.Decision.StagedContent != "" {
			next.StagedContent = a.Decision.StagedContent
		}
		next.Error = ""

	case SourcesChanged:
		if a.Generation < s.Generation {
			next.Version--
			return next
		}
		next.Generation = a.Generation
		next.Advisory = cloneConflicts(a.Advisory)
		next.Authoritative = nil

	case FusionStarted:
		next.Processing = true
		next.Error = ""

	case FusionSucceeded:
		next.Processing = false
		next.Error = ""
		if a.Result == nil {
			break
		}
		next.Record = a.Result.Agreement.Clone()
		if a.Result.Generation == 0 || a.Result.Generation == next.Generation {
			next.Authoritative = cloneConflicts(a.Result.Conflicts)
			if next.Authoritative == nil {
				next.Authoritative = []core.Conflict{}
			}
		}

	case FusionFailed:
		next.Processing = false
		if a.Err != nil {
			next.Error = a.Err.Error()
		}

	case RecordEdited:
		next.Record = a.Record.Clone()

	case ErrorDismissed:
		next.Error = ""

	case ContextCleared:
		next.View = core.ViewNone
		next.Record = nil
		next.Authoritative = nil
		next.StagedContent = ""
		next.Error = ""

	default:
		next.Version--
		return next
	}

	next.Conflicts = cloneConflicts(conflict.Supersede(next.Advisory, next.Authoritative))
	return next
}

func (s State) clone() State {
	out := s
	out.Record = s.Record.Clone()
	out.Conflicts = cloneConflicts(s.Conflicts)
	out.Advisory = cloneConflicts(s.Advisory)
	out.Authoritative = cloneConflicts(s.Authoritative)
	return out
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return s.clone()
}

func cloneConflicts(in []core.Conflict) []core.Conflict {
	if in == nil {
		return nil
	}
	out := make([]core.Conflict, len(in))
	for i, c := range in {
		c.Values = append([]core.ConflictValue(nil), c.Values...)
		out[i] = c
	}
	return out
}
