// Package fs is the filesystem adapter: a watched inbox that feeds per-source
// extraction files into the collector, and atomic record persistence.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Sink receives decoded sources. *sources.Collector implements it.
type Sink interface {
	Upsert(kind core.SourceKind, entry core.SourceEntry) error
	Remove(kind core.SourceKind) bool
}

// InboxConfig describes a watched directory.
type InboxConfig struct {
	Dir string
	// Patterns maps doublestar globs, relative to Dir, to source kinds.
	Patterns map[string]core.SourceKind
	Logger   *slog.Logger
	// ErrorHandler receives per-file load failures. They are logged when nil.
	ErrorHandler func(error)
	Debounce     time.Duration
}

type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Inbox loads source files from a directory, once (Scan) or continuously (Watch).
type Inbox struct {
	config InboxConfig
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	origin   map[core.SourceKind]string
	loaded   int
	failed   int
	watching bool
	sup      runner
}

// NewInbox validates config and returns an Inbox feeding sink.
func NewInbox(config InboxConfig, sink Sink) (*Inbox, error) {
	if config.Dir == "" {
		return nil, core.Invalid("inbox.dir", "missing")
	}
	if len(config.Patterns) == 0 {
		return nil, core.Invalid("inbox.patterns", "no patterns")
	}
	for pattern, kind := range config.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, core.Invalid("inbox.patterns", "bad pattern %q", pattern)
		}
		if !kind.Valid() {
			return nil, core.Invalid("inbox.patterns", "pattern %q: invalid kind", pattern)
		}
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Inbox{
		config: config,
		sink:   sink,
		logger: logger,
		origin: make(map[core.SourceKind]string),
	}, nil
}

// Classify maps a path relative to the inbox dir to its source kind. When
// several patterns match, the earliest kind in canonical order wins.
func (in *Inbox) Classify(rel string) (core.SourceKind, bool) {
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(filepath.Base(rel), TempFilePrefix) || strings.HasPrefix(filepath.Base(rel), ".") {
		return 0, false
	}
	var (
		best  core.SourceKind
		found bool
	)
	for pattern, kind := range in.config.Patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok && (!found || kind < best) {
			best, found = kind, true
		}
	}
	return best, found
}

type candidate struct {
	kind    core.SourceKind
	path    string
	modTime time.Time
}

// Scan loads every matching file. When several files map to the same kind
// the most recently modified one wins.
func (in *Inbox) Scan(ctx context.Context) error {
	newest := make(map[core.SourceKind]candidate)
	err := filepath.WalkDir(in.config.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(in.config.Dir, path)
		if err != nil {
			return err
		}
		kind, ok := in.Classify(rel)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if c, seen := newest[kind]; !seen || info.ModTime().After(c.modTime) {
			newest[kind] = candidate{kind: kind, path: path, modTime: info.ModTime()}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", in.config.Dir, err)
	}

	kinds := make([]core.SourceKind, 0, len(newest))
	for kind := range newest {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	entries := make([]core.SourceEntry, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(core.SourceKinds()))
	for i, kind := range kinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := ReadSource(newest[kind].path, kind)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, kind := range kinds {
		if err := in.apply(kind, newest[kind].path, entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads one file, classifies it by name and upserts it.
func (in *Inbox) Load(path string) error {
	rel, err := filepath.Rel(in.config.Dir, path)
	if err != nil {
		return err
	}
	kind, ok := in.Classify(rel)
	if !ok {
		return nil
	}
	entry, err := ReadSource(path, kind)
	if err != nil {
		in.mu.Lock()
		in.failed++
		in.mu.Unlock()
		return err
	}
	return in.apply(kind, path, entry)
}

// Forget removes the source that path supplied, if it still is the origin
// of its kind.
func (in *Inbox) Forget(path string) bool {
	in.mu.Lock()
	var (
		kind  core.SourceKind
		owned bool
	)
	for k, origin := range in.origin {
		if origin == path {
			kind, owned = k, true
			delete(in.origin, k)
			break
		}
	}
	in.mu.Unlock()
	if !owned {
		return false
	}
	in.logger.Info("source file removed", "kind", kind, "path", path)
	return in.sink.Remove(kind)
}

func (in *Inbox) apply(kind core.SourceKind, path string, entry core.SourceEntry) error {
	if err := in.sink.Upsert(kind, entry); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	in.mu.Lock()
	in.origin[kind] = path
	in.loaded++
	in.mu.Unlock()
	in.logger.Info("source loaded", "kind", kind, "path", path)
	return nil
}

func (in *Inbox) reportError(err error) {
	if in.config.ErrorHandler != nil {
		in.config.ErrorHandler(err)
		return
	}
	in.logger.Warn("inbox file rejected", "error", err)
}

// Watch starts a supervised watcher on the inbox directory. The watcher is
// restarted on failure. Call Close to stop it.
func (in *Inbox) Watch(ctx context.Context) error {
	if err := os.MkdirAll(in.config.Dir, 0o755); err != nil {
		return fmt.Errorf("inbox dir: %w", err)
	}

	in.mu.Lock()
	if in.sup != nil {
		in.mu.Unlock()
		return errors.New("inbox already watching")
	}
	in.mu.Unlock()

	spec := supervisor.Spec{
		Name: "inbox-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newInboxWorker(in), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     10,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("source-inbox", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("start inbox watcher: %w", err)
	}

	in.mu.Lock()
	in.sup = sup
	in.mu.Unlock()
	return nil
}

// Close stops the watcher started by Watch.
func (in *Inbox) Close(ctx context.Context) error {
	in.mu.Lock()
	sup := in.sup
	in.sup = nil
	in.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func (in *Inbox) setWatching(active bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.watching = active
}
