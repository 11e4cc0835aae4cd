package sources_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
	"github.com/Josephrp/creditnexus-sub000/pkg/sources"
)

func entry(lei string) core.SourceEntry {
	return core.SourceEntry{
		Status: core.ExtractionSuccess,
		Record: &core.CreditAgreementData{Extra: map[string]any{"lei": lei}},
	}
}

func TestCollector_UpsertReplacesPerKind(t *testing.T) {
	c := sources.NewCollector()

	require.NoError(t, c.Upsert(core.SourceAudio, entry("A")))
	require.NoError(t, c.Upsert(core.SourceAudio, entry("B")))

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Record.Extra["lei"])
	assert.Equal(t, core.SourceAudio, entries[0].Kind)
	assert.False(t, entries[0].CapturedAt.IsZero())
}

func TestCollector_EntriesInKindOrder(t *testing.T) {
	c := sources.NewCollector()
	for _, k := range []core.SourceKind{core.SourceText, core.SourceAudio, core.SourceDocument, core.SourceImage} {
		require.NoError(t, c.Upsert(k, entry(k.String())))
	}

	var kinds []core.SourceKind
	for _, e := range c.Entries() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, core.SourceKinds(), kinds)
}

func TestCollector_NeverHoldsDuplicateKinds(t *testing.T) {
	c := sources.NewCollector()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		kind := core.SourceKind(rng.Intn(4))
		if rng.Intn(3) == 0 {
			c.Remove(kind)
		} else {
			require.NoError(t, c.Upsert(kind, entry("x")))
		}

		seen := map[core.SourceKind]bool{}
		for _, e := range c.Entries() {
			require.False(t, seen[e.Kind], "duplicate kind %s", e.Kind)
			seen[e.Kind] = true
		}
	}
}

func TestCollector_MutationsBumpGenerationAndNotify(t *testing.T) {
	c := sources.NewCollector()
	var snaps []sources.Snapshot
	unsubscribe := c.OnChange(func(s sources.Snapshot) { snaps = append(snaps, s) })

	require.NoError(t, c.Upsert(core.SourceAudio, entry("A")))
	require.NoError(t, c.Upsert(core.SourceImage, entry("B")))
	assert.True(t, c.Remove(core.SourceAudio))
	assert.False(t, c.Remove(core.SourceAudio), "removing an absent kind is a no-op")
	c.Clear()
	c.Clear()

	require.Len(t, snaps, 4)
	assert.Equal(t, uint64(4), c.Generation())
	assert.Equal(t, 2, snaps[1].Len())
	assert.Equal(t, 0, snaps[3].Len())

	unsubscribe()
	require.NoError(t, c.Upsert(core.SourceText, entry("C")))
	assert.Len(t, snaps, 4)
}

func TestCollector_NotifiesInGenerationOrder(t *testing.T) {
	c := sources.NewCollector()

	var mu sync.Mutex
	var seen []uint64
	entered := make(chan struct{})
	release := make(chan struct{})
	c.OnChange(func(s sources.Snapshot) {
		if s.Generation == 1 {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, s.Generation)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Upsert(core.SourceAudio, entry("A")))
	}()
	<-entered
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Upsert(core.SourceImage, entry("B")))
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), c.Generation(), "a second mutation must wait for the first notification")
	close(release)
	wg.Wait()

	assert.Equal(t, []uint64{1, 2}, seen)
	assert.Equal(t, uint64(2), c.Generation())
}

func TestCollector_RejectsInvalidEntries(t *testing.T) {
	c := sources.NewCollector()
	bad := 1.5
	err := c.Upsert(core.SourceAudio, core.SourceEntry{Confidence: &bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Generation())
}

func TestCollector_ReturnsCopies(t *testing.T) {
	c := sources.NewCollector()
	captured := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := entry("A")
	e.CapturedAt = captured
	require.NoError(t, c.Upsert(core.SourceDocument, e))

	e.Record.Extra["lei"] = "changed by caller"
	got, ok := c.Get(core.SourceDocument)
	require.True(t, ok)
	assert.Equal(t, "A", got.Record.Extra["lei"])
	assert.Equal(t, captured, got.CapturedAt)

	got.Record.Extra["lei"] = "changed by reader"
	again, _ := c.Get(core.SourceDocument)
	assert.Equal(t, "A", again.Record.Extra["lei"])
}
