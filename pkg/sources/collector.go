// Package sources keeps the latest extraction result per source kind.
package sources

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// Snapshot is an immutable view of the collector at one generation.
// Conflicts and fusion results are only valid for the generation they were
// computed from.
type Snapshot struct {
	Generation uint64
	Entries    []core.SourceEntry
}

// Len returns the number of entries in the snapshot.
func (s Snapshot) Len() int { return len(s.Entries) }

// Collector maps each source kind to at most one live entry.
//
// Observers are notified one mutation at a time, in generation order. An
// observer must not mutate the collector it observes.
type Collector struct {
	// notifyMu is held from the mutation through its notification.
	notifyMu   sync.Mutex
	mu         sync.RWMutex
	entries    map[core.SourceKind]core.SourceEntry
	generation uint64
	observers  map[uint64]func(Snapshot)
	nextID     uint64
	now        func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		entries:   make(map[core.SourceKind]core.SourceEntry),
		observers: make(map[uint64]func(Snapshot)),
		now:       time.Now,
	}
}

// Upsert replaces the entry for kind. The entry's own Kind is overwritten
// with kind; a zero CapturedAt is stamped with the current time.
func (c *Collector) Upsert(kind core.SourceKind, entry core.SourceEntry) error {
	entry = entry.Clone()
	entry.Kind = kind
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("sources: upsert %s: %w", kind, err)
	}
	if entry.CapturedAt.IsZero() {
		entry.CapturedAt = c.now()
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.entries[kind] = entry
	snap := c.bumpLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
	return nil
}

// Remove drops the entry for kind. It reports whether an entry existed;
// removing an absent kind does not invalidate anything.
func (c *Collector) Remove(kind core.SourceKind) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if _, ok := c.entries[kind]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, kind)
	snap := c.bumpLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
	return true
}

// Clear empties every kind.
func (c *Collector) Clear() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	c.entries = make(map[core.SourceKind]core.SourceEntry)
	snap := c.bumpLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	notify(observers, snap)
}

// Get returns a copy of the entry for kind.
func (c *Collector) Get(kind core.SourceKind) (core.SourceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	if !ok {
		return core.SourceEntry{}, false
	}
	return e.Clone(), true
}

// Entries returns copies of the live entries in kind order
// (audio, image, document, text).
func (c *Collector) Entries() []core.SourceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entriesLocked()
}

// Snapshot returns the entries together with their generation.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Generation: c.generation, Entries: c.entriesLocked()}
}

// Len returns the number of live entries.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Generation increases on every mutation.
func (c *Collector) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// OnChange registers fn to receive the new snapshot after every mutation.
func (c *Collector) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Collector) entriesLocked() []core.SourceEntry {
	out := make([]core.SourceEntry, 0, len(c.entries))
	for _, kind := range core.SourceKinds() {
		if e, ok := c.entries[kind]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (c *Collector) bumpLocked() Snapshot {
	c.generation++
	return Snapshot{Generation: c.generation, Entries: c.entriesLocked()}
}

func (c *Collector) observersLocked() []func(Snapshot) {
	ids := make([]uint64, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.observers[id])
	}
	return out
}

func notify(observers []func(Snapshot), snap Snapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
