package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
)

var testPatterns = map[string]core.SourceKind{
	"**/*.audio.json":    core.SourceAudio,
	"**/*.image.json":    core.SourceImage,
	"**/*.document.json": core.SourceDocument,
	"**/*.text.json":     core.SourceText,
}

func newTestInbox(t *testing.T) (*Inbox, *sources.Collector) {
	t.Helper()
	collector := sources.NewCollector()
	in, err := NewInbox(InboxConfig{
		Dir:      t.TempDir(),
		Patterns: testPatterns,
		Debounce: 10 * time.Millisecond,
	}, collector)
	if err != nil {
		t.Fatalf("NewInbox failed: %v", err)
	}
	return in, collector
}

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const borrowerAudio = `{"raw_text": "call transcript", "status": "success", "confidence": 0.7,
  "record": {"parties": [{"name": "ACME", "role": "Borrower", "lei": "LEI-A"}]}}`

const borrowerText = `{"parties": [{"name": "ACME", "role": "Borrower", "lei": "LEI-B"}], "extraction_status": "partial_data_missing"}`

func TestDecodeSource(t *testing.T) {
	entry, err := DecodeSource([]byte(borrowerAudio), core.SourceAudio)
	if err != nil {
		t.Fatalf("entry shape: %v", err)
	}
	if entry.Kind != core.SourceAudio || entry.RawText != "call transcript" || *entry.Confidence != 0.7 {
		t.Errorf("unexpected entry: %+v", entry)
	}

	entry, err = DecodeSource([]byte(borrowerText), core.SourceText)
	if err != nil {
		t.Fatalf("bare record: %v", err)
	}
	if entry.Status != core.ExtractionPartialData || entry.Record.Parties[0].LEI != "LEI-B" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	for name, body := range map[string]string{
		"empty":      "  ",
		"not json":   "transcript",
		"confidence": `{"raw_text": "x", "confidence": 3}`,
		"status":     `{"raw_text": "x", "status": "done"}`,
	} {
		if _, err := DecodeSource([]byte(body), core.SourceImage); !errors.Is(err, core.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestInbox_Classify(t *testing.T) {
	in, _ := newTestInbox(t)

	cases := map[string]struct {
		kind core.SourceKind
		ok   bool
	}{
		"call.audio.json":            {core.SourceAudio, true},
		"deal-7/scan.image.json":     {core.SourceImage, true},
		"notes.txt":                  {0, false},
		TempFilePrefix + "text.json": {0, false},
		".hidden.text.json":          {0, false},
	}
	for rel, want := range cases {
		kind, ok := in.Classify(rel)
		if ok != want.ok || (ok && kind != want.kind) {
			t.Errorf("Classify(%q) = %v, %v; want %v, %v", rel, kind, ok, want.kind, want.ok)
		}
	}
}

func TestInbox_Scan(t *testing.T) {
	in, collector := newTestInbox(t)
	writeSource(t, in.config.Dir, "a.audio.json", borrowerAudio)
	writeSource(t, in.config.Dir, "nested/b.text.json", borrowerText)
	writeSource(t, in.config.Dir, "readme.md", "# ignore me")

	if err := in.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if collector.Len() != 2 {
		t.Fatalf("expected 2 sources, got %d", collector.Len())
	}
	entries := collector.Entries()
	if entries[0].Kind != core.SourceAudio || entries[1].Kind != core.SourceText {
		t.Errorf("unexpected order: %v, %v", entries[0].Kind, entries[1].Kind)
	}

	state := in.State().(InboxState)
	if state.Loaded != 2 || state.Origins["text"] == "" {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestInbox_ScanRejectsBadFile(t *testing.T) {
	in, collector := newTestInbox(t)
	writeSource(t, in.config.Dir, "a.audio.json", `{"raw_text": "x", "confidence": 9}`)

	if err := in.Scan(context.Background()); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if collector.Len() != 0 {
		t.Errorf("bad file must not be collected")
	}
}

func TestInbox_Forget(t *testing.T) {
	in, collector := newTestInbox(t)
	path := writeSource(t, in.config.Dir, "a.audio.json", borrowerAudio)
	if err := in.Load(path); err != nil {
		t.Fatal(err)
	}
	if !in.Forget(path) {
		t.Fatal("expected the source to be removed")
	}
	if collector.Len() != 0 {
		t.Errorf("collector still holds %d sources", collector.Len())
	}
	if in.Forget(path) {
		t.Error("second Forget must be a no-op")
	}
}

func TestInbox_WatchPicksUpFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, collector := newTestInbox(t)

	var mu sync.Mutex
	var generations []uint64
	collector.OnChange(func(s sources.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		generations = append(generations, s.Generation)
	})

	if err := in.Watch(ctx); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		if err := in.Close(stopCtx); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()
	waitForWatching(t, in, true)

	path := writeSource(t, in.config.Dir, "call.audio.json", borrowerAudio)
	waitFor(t, "audio source", func() bool {
		_, ok := collector.Get(core.SourceAudio)
		return ok
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "audio source removal", func() bool { return collector.Len() == 0 })

	mu.Lock()
	defer mu.Unlock()
	if len(generations) < 2 {
		t.Errorf("expected at least an upsert and a removal, got %v", generations)
	}
}

func TestInboxSupervisorRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in, _ := newTestInbox(t)
	created := make(chan *inboxWorker, 2)

	spec := supervisor.Spec{
		Name: "inbox-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := newInboxWorker(in)
			created <- w
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      1,
			ResetDuration:   50 * time.Millisecond,
			MaxRestarts:     2,
			MaxDuration:     200 * time.Millisecond,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("test-inbox", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("failed to start supervisor: %v", err)
	}

	first := waitForWorker(t, created, "first")
	waitForWatching(t, in, true)
	waitForWatcherInit(t, first)
	_ = first.watcher.Close()

	second := waitForWorker(t, created, "second")
	if first == second {
		t.Fatalf("expected supervisor to restart the watcher with a new instance")
	}
	waitForWatching(t, in, true)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := sup.Stop(stopCtx); err != nil {
		t.Fatalf("failed to stop supervisor: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForWorker(t *testing.T, ch <-chan *inboxWorker, label string) *inboxWorker {
	t.Helper()
	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s worker", label)
		return nil
	}
}

func waitForWatcherInit(t *testing.T, w *inboxWorker) {
	t.Helper()
	waitFor(t, "watcher initialization", func() bool { return w.watcher != nil })
}

func waitForWatching(t *testing.T, in *Inbox, expected bool) {
	t.Helper()
	waitFor(t, "inbox watching state", func() bool {
		state, ok := in.State().(InboxState)
		return ok && state.Watching == expected
	})
}
