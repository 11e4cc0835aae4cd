package workflow

import (
	"slices"

	"github.com/aretw0/introspection"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

var _ introspection.Introspectable = (*Monitor)(nil)

// MonitorState is the introspection snapshot of a Monitor.
type MonitorState struct {
	Interval    string                      `json:"interval"`
	RetryBudget int                         `json:"retry_budget"`
	Closed      bool                        `json:"closed"`
	Polling     []string                    `json:"polling"`
	ByStatus    map[core.WorkflowStatus]int `json:"by_status"`
}

func (m *Monitor) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MonitorState{
		Interval:    m.interval.String(),
		RetryBudget: m.retryBudget,
		Closed:      m.closed,
		ByStatus:    make(map[core.WorkflowStatus]int),
	}
	for id := range m.pollers {
		s.Polling = append(s.Polling, id)
	}
	slices.Sort(s.Polling)
	for _, wf := range m.workflows {
		s.ByStatus[wf.Status]++
	}
	return s
}

func (m *Monitor) ComponentType() string {
	return "workflow-monitor"
}
