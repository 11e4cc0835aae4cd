package fs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// inboxWorker is one watcher incarnation; the supervisor builds a new one
// after each failure.
type inboxWorker struct {
	*worker.BaseWorker
	inbox     *Inbox
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newInboxWorker(inbox *Inbox) *inboxWorker {
	return &inboxWorker{
		BaseWorker: worker.NewBaseWorker("inbox-watcher"),
		inbox:      inbox,
	}
}

func (w *inboxWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("inbox watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addTree(watcher, w.inbox.config.Dir); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.inbox.config.Debounce)
	w.inbox.setWatching(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *inboxWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *inboxWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"dir":               w.inbox.config.Dir,
		}
	})
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && filepath.Base(path)[0] == '.' {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *inboxWorker) run(ctx context.Context) (err error) {
	logger := w.inbox.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("inbox watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("inbox watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("inbox watcher panic", "error", err)
			}
		}
	}()
	defer w.inbox.setWatching(false)
	defer w.watcher.Close()

	err = w.loop(ctx)

	// pending loads must finish before the watcher is reported inactive
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *inboxWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.inbox.logger.Error("fsnotify error", "error", wErr)
			w.inbox.reportError(wErr)
		}
	}
}

func (w *inboxWorker) handle(event fsnotify.Event) {
	w.inbox.logger.Debug("inbox event", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if isDir, err := statDir(event.Name); err == nil && isDir {
			if err := addTree(w.watcher, event.Name); err != nil {
				w.inbox.reportError(err)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.inbox.config.Dir, event.Name)
	if err != nil {
		return
	}
	if _, ok := w.inbox.Classify(rel); !ok {
		return
	}

	path := event.Name
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.debouncer.add(path, func() {
			if exists(path) {
				w.load(path)
				return
			}
			w.inbox.Forget(path)
		})
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.debouncer.add(path, func() { w.load(path) })
	}
}

func (w *inboxWorker) load(path string) {
	if err := w.inbox.Load(path); err != nil {
		w.inbox.reportError(err)
	}
}
