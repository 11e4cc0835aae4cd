// Package conflict detects field-level disagreements between sources.
//
// Detection is advisory: it runs locally so the user can be warned before
// fusion, but the conflict list returned by the fusion backend is
// authoritative and supersedes it.
package conflict

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
)

// Detect compares the structured records of entries field by field.
//
// A Conflict is emitted for every path on which two or more sources hold
// distinct non-empty values. Paths compare case-insensitively and each source
// contributes at most one value per path. Strings compare trimmed and
// case-insensitively. Conflicts are sorted by path and their values follow
// source-kind order, so the result is deterministic for a given set of entries.
func Detect(entries []core.SourceEntry) []core.Conflict {
	ordered := append([]core.SourceEntry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Kind < ordered[j].Kind })

	type field struct {
		path    string
		values  []core.ConflictValue
		keys    map[string]struct{}
		sources map[core.SourceKind]struct{}
	}
	fields := make(map[string]*field)

	for _, e := range ordered {
		if e.Record == nil {
			continue
		}
		flat := Flatten(e.Record)
		paths := make([]string, 0, len(flat))
		for path := range flat {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			canon := strings.ToLower(path)
			f, ok := fields[canon]
			if !ok {
				f = &field{
					path:    path,
					keys:    make(map[string]struct{}),
					sources: make(map[core.SourceKind]struct{}),
				}
				fields[canon] = f
			}
			if _, seen := f.sources[e.Kind]; seen {
				continue
			}
			f.sources[e.Kind] = struct{}{}
			v := flat[path]
			f.values = append(f.values, core.ConflictValue{
				Value:      v,
				Source:     e.Kind,
				Confidence: e.Confidence,
			})
			f.keys[valueKey(v)] = struct{}{}
		}
	}

	var out []core.Conflict
	for _, f := range fields {
		if len(f.sources) < 2 || len(f.keys) < 2 {
			continue
		}
		out = append(out, core.Conflict{Field: f.path, Values: f.values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func valueKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + strings.ToLower(strings.TrimSpace(t))
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(t)
	default:
		return "v:" + strings.ToLower(strings.TrimSpace(toString(t)))
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}

// Supersede returns the authoritative list when the fusion backend provided
// one (a non-nil slice, possibly empty) and the advisory list otherwise.
func Supersede(advisory, authoritative []core.Conflict) []core.Conflict {
	if authoritative != nil {
		return authoritative
	}
	return advisory
}

// Detector caches the conflicts of the last collector snapshot it saw.
type Detector struct {
	mu         sync.Mutex
	generation uint64
	valid      bool
	result     []core.Conflict
}

// NewDetector creates a Detector with an empty cache.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectSnapshot returns the conflicts of snap, recomputing only when the
// snapshot generation differs from the cached one.
func (d *Detector) DetectSnapshot(snap sources.Snapshot) []core.Conflict {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.valid && d.generation == snap.Generation {
		return cloneConflicts(d.result)
	}
	d.result = Detect(snap.Entries)
	d.generation = snap.Generation
	d.valid = true
	return cloneConflicts(d.result)
}

// Cached returns the cached result and whether it is still valid for generation.
func (d *Detector) Cached(generation uint64) ([]core.Conflict, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.valid || d.generation != generation {
		return nil, false
	}
	return cloneConflicts(d.result), true
}

// Invalidate drops the cached result.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = false
	d.result = nil
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
