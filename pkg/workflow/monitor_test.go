package workflow_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type step struct {
	status   core.WorkflowStatus
	progress int
	err      error
}

// scriptedSource replays steps and repeats the last one forever.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls atomic.Int32
}

func (s *scriptedSource) WorkflowStatus(ctx context.Context, kind core.WorkflowKind, id string) (*core.WorkflowProgress, error) {
	n := int(s.calls.Add(1)) - 1
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.steps) {
		n = len(s.steps) - 1
	}
	st := s.steps[n]
	if st.err != nil {
		return nil, st.err
	}
	return &core.WorkflowProgress{ID: id, Kind: kind, Status: st.status, Progress: st.progress}, nil
}

type recorder struct {
	mu    sync.Mutex
	notes []workflow.Notification
}

func (r *recorder) notify(n workflow.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []workflow.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]workflow.Notification(nil), r.notes...)
}

func newMonitor(t *testing.T, src workflow.StatusSource, rec *recorder, opts ...workflow.Option) *workflow.Monitor {
	t.Helper()
	opts = append([]workflow.Option{
		workflow.WithInterval(5 * time.Millisecond),
		workflow.WithNotifier(rec.notify),
	}, opts...)
	m := workflow.New(src, opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMonitor_CompletesWithSingleNotification(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{status: core.WorkflowRunning, progress: 20},
		{status: core.WorkflowRunning, progress: 60},
		{status: core.WorkflowCompleted, progress: 100},
	}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Launch("wf-1", core.WorkflowResearch))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !m.Polling("wf-1") }, time.Second, 5*time.Millisecond)

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load(), "no polls after the terminal status")
	assert.EqualValues(t, 3, calls)

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, core.WorkflowCompleted, notes[0].Status)
	assert.Equal(t, 100, notes[0].Progress.Progress)

	wf, ok := m.Get("wf-1")
	require.True(t, ok)
	assert.Equal(t, core.WorkflowCompleted, wf.Status)
}

func TestMonitor_FailureNotifies(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowFailed}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Launch("wf-f", core.WorkflowAnalysis))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, core.WorkflowFailed, rec.all()[0].Status)
}

func TestMonitor_NetworkErrorsDoNotAdvanceState(t *testing.T) {
	boom := errors.New("connection refused")
	src := &scriptedSource{steps: []step{
		{err: boom},
		{err: boom},
		{status: core.WorkflowRunning, progress: 40},
		{status: core.WorkflowCompleted, progress: 100},
	}}
	var progress atomic.Int32
	rec := &recorder{}
	m := newMonitor(t, src, rec, workflow.WithProgressHandler(func(p core.WorkflowProgress) {
		progress.Store(int32(p.Progress))
	}))

	require.NoError(t, m.Launch("wf-2", core.WorkflowPeopleHub))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, core.WorkflowCompleted, rec.all()[0].Status)
	assert.EqualValues(t, 40, progress.Load())
}

func TestMonitor_RetryBudgetLeavesWorkflowRunning(t *testing.T) {
	src := &scriptedSource{steps: []step{{err: errors.New("down")}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec, workflow.WithRetryBudget(3))

	require.NoError(t, m.Launch("wf-3", core.WorkflowResearch))
	require.Eventually(t, func() bool { return !m.Polling("wf-3") }, time.Second, 5*time.Millisecond)

	assert.EqualValues(t, 3, src.calls.Load())
	wf, _ := m.Get("wf-3")
	assert.Equal(t, core.WorkflowRunning, wf.Status)
	assert.Empty(t, rec.all())
}

func TestMonitor_CancelStopsPolling(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowRunning, progress: 10}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Launch("wf-4", core.WorkflowResearch))
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)

	require.NoError(t, m.Cancel("wf-4"))
	assert.False(t, m.Polling("wf-4"))

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, core.WorkflowCancelled, notes[0].Status)

	// cancelling again is a no-op
	require.NoError(t, m.Cancel("wf-4"))
	assert.Len(t, rec.all(), 1)

	assert.ErrorIs(t, m.Cancel("missing"), core.ErrUnknownWorkflow)
}

func TestMonitor_ProgressHandlerCancelsOwnWorkflow(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowRunning, progress: 10}}}
	rec := &recorder{}
	cancelled := make(chan error, 1)
	var m *workflow.Monitor
	var once sync.Once
	m = newMonitor(t, src, rec, workflow.WithProgressHandler(func(p core.WorkflowProgress) {
		once.Do(func() { cancelled <- m.Cancel(p.ID) })
	}))

	require.NoError(t, m.Launch("wf-9", core.WorkflowAnalysis))
	select {
	case err := <-cancelled:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancel from the progress handler did not return")
	}

	require.Eventually(t, func() bool { return !m.Polling("wf-9") }, time.Second, time.Millisecond)
	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())

	notes := rec.all()
	require.Len(t, notes, 1)
	assert.Equal(t, core.WorkflowCancelled, notes[0].Status)
}

func TestMonitor_RelaunchTerminalRejected(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowCompleted, progress: 100}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Launch("wf-5", core.WorkflowAnalysis))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Launch("wf-5", core.WorkflowAnalysis), core.ErrValidation)
}

func TestMonitor_RelaunchReplacesPoller(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowRunning}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Track("wf-6", core.WorkflowResearch))
	wf, _ := m.Get("wf-6")
	assert.Equal(t, core.WorkflowPending, wf.Status)
	assert.False(t, m.Polling("wf-6"))

	require.NoError(t, m.Launch("wf-6", core.WorkflowResearch))
	require.NoError(t, m.Launch("wf-6", core.WorkflowResearch))
	assert.True(t, m.Polling("wf-6"))

	state := m.State().(workflow.MonitorState)
	assert.Equal(t, []string{"wf-6"}, state.Polling)
	assert.Equal(t, 1, state.ByStatus[core.WorkflowRunning])
}

func TestMonitor_CloseStopsEverything(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: core.WorkflowRunning}}}
	rec := &recorder{}
	m := newMonitor(t, src, rec)

	require.NoError(t, m.Launch("a", core.WorkflowResearch))
	require.NoError(t, m.Launch("b", core.WorkflowAnalysis))
	require.NoError(t, m.Close())

	calls := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.calls.Load())

	assert.ErrorIs(t, m.Launch("c", core.WorkflowResearch), core.ErrMonitorClosed)
	assert.Empty(t, rec.all())
	assert.Len(t, m.List(), 2)
}

func TestMonitor_ValidatesLaunch(t *testing.T) {
	m := workflow.New(&scriptedSource{steps: []step{{status: core.WorkflowRunning}}})
	defer m.Close()

	assert.ErrorIs(t, m.Launch("", core.WorkflowResearch), core.ErrValidation)
	assert.ErrorIs(t, m.Launch("x", core.WorkflowKind("mystery")), core.ErrValidation)
}
