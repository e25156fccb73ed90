package cuckoomap

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestMap(t *testing.T, buckets int) *Map[uint32, uint32] {
	t.Helper()
	return New[uint32, uint32](buckets, uint32Traits)
}

func TestInsertThenLookup(t *testing.T) {
	m := newTestMap(t, 64)

	ok := m.Insert(42, 4242)
	require.True(t, ok)

	f := m.Lookup(42)
	defer f.Release()
	require.True(t, f.Found())
	assert.Equal(t, uint32(4242), *f.Value())
}

func TestLookupMissNotFound(t *testing.T) {
	m := newTestMap(t, 64)
	f := m.Lookup(99)
	defer f.Release()
	assert.False(t, f.Found())
}

func TestInsertDuplicateRejected(t *testing.T) {
	m := newTestMap(t, 64)
	require.True(t, m.Insert(1, 100))
	assert.False(t, m.Insert(1, 200), "re-inserting the same key must fail")

	f := m.Lookup(1)
	defer f.Release()
	assert.Equal(t, uint32(100), *f.Value(), "value must be unchanged after a rejected duplicate insert")
}

func TestRemoveThenLookupMisses(t *testing.T) {
	m := newTestMap(t, 64)
	require.True(t, m.Insert(5, 50))
	require.True(t, m.Remove(5))

	f := m.Lookup(5)
	defer f.Release()
	assert.False(t, f.Found())

	assert.False(t, m.Remove(5), "removing an absent key must report false")
}

func TestNrUsedTracksInsertsAndRemoves(t *testing.T) {
	m := newTestMap(t, 64)
	assert.Equal(t, 0, m.NrUsed())

	for i := uint32(1); i <= 10; i++ {
		require.True(t, m.Insert(i, i))
	}
	assert.Equal(t, 10, m.NrUsed())

	m.Remove(5)
	assert.Equal(t, 9, m.NrUsed())

	m.Insert(5, 500)
	assert.Equal(t, 10, m.NrUsed())
}

// TestCascadeGrowsUnderPressure forces enough keys into a small layer-0
// table that overflow is unavoidable, and checks the cascade grows
// rather than silently dropping entries.
func TestCascadeGrowsUnderPressure(t *testing.T) {
	m := newTestMap(t, 4)

	const n = 2000
	for i := uint32(1); i <= n; i++ {
		require.True(t, m.Insert(i, i*7), "insert of key %d failed", i)
	}

	assert.Greater(t, m.NumLayers(), 1, "inserting far past layer-0 capacity must grow the cascade")
	assert.Equal(t, n, m.NrUsed())

	for i := uint32(1); i <= n; i++ {
		f := m.Lookup(i)
		found := f.Found()
		var val uint32
		if found {
			val = *f.Value()
		}
		f.Release()
		require.True(t, found, "key %d vanished somewhere in the cascade", i)
		assert.Equal(t, i*7, val)
	}
}

// TestLookupPromotesFromOverflowLayer drives enough keys into the map
// to guarantee some land above layer 0, then checks that looking one
// of them up moves it back toward layer 0 (spec §4.3, "Lookup"
// promotion; §8 Testable Property 5).
func TestLookupPromotesFromOverflowLayer(t *testing.T) {
	m := newTestMap(t, 4)

	const n = 2000
	for i := uint32(1); i <= n; i++ {
		require.True(t, m.Insert(i, i))
	}

	var promotedKey uint32
	for i := uint32(1); i <= n; i++ {
		if layer, ok := m.LayerOf(i); ok && layer > 0 {
			promotedKey = i
			break
		}
	}
	require.NotZero(t, promotedKey, "expected at least one key to have spilled past layer 0")

	before, _ := m.LayerOf(promotedKey)
	require.Greater(t, before, 0)

	f := m.Lookup(promotedKey)
	f.Release()

	after, ok := m.LayerOf(promotedKey)
	require.True(t, ok)
	assert.Less(t, after, before, "a lookup hit above layer 0 must promote the entry toward layer 0")
}

func TestInsertEmptyKeyPanics(t *testing.T) {
	m := newTestMap(t, 16)
	assert.Panics(t, func() {
		m.Insert(0, 1)
	})
}

func TestInsertFindingPointsAtRestingSlot(t *testing.T) {
	m := newTestMap(t, 64)
	ok, f := m.InsertFinding(3, 300)
	defer f.Release()
	require.True(t, ok)
	require.True(t, f.Found())
	assert.Equal(t, uint32(300), *f.Value())
}

func TestRemoveFindingUsesHeldLock(t *testing.T) {
	m := newTestMap(t, 64)
	require.True(t, m.Insert(8, 80))

	f := m.Lookup(8)
	require.True(t, f.Found())
	assert.True(t, m.RemoveFinding(f))
	f.Release()

	assert.Equal(t, 0, m.NrUsed())
	g := m.Lookup(8)
	defer g.Release()
	assert.False(t, g.Found())
}

func TestFindingRebindReleasesPriorLock(t *testing.T) {
	m1 := newTestMap(t, 16)
	m2 := newTestMap(t, 16)
	require.True(t, m1.Insert(1, 11))
	require.True(t, m2.Insert(1, 22))

	f := m1.Lookup(1)
	require.True(t, f.Found())

	ok := m2.LookupInto(1, f)
	require.True(t, ok)
	assert.Equal(t, uint32(22), *f.Value())
	f.Release()

	// m1 must not still be locked; a fresh lookup against it must not
	// hang.
	g := m1.Lookup(1)
	defer g.Release()
	assert.True(t, g.Found())
}

// TestConcurrentAccessIsRaceFree exercises the map from many
// goroutines at once under the race detector (spec §5, "A single
// coarse-grained mutex ... serializes all operations").
func TestConcurrentAccessIsRaceFree(t *testing.T) {
	m := newTestMap(t, 256)

	g, _ := errgroup.WithContext(context.Background())
	const workers = 16
	const perWorker = 500

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				k := uint32(w*perWorker + i + 1)
				if !m.Insert(k, k) {
					return fmt.Errorf("worker %d: insert of fresh key %d unexpectedly rejected", w, k)
				}
				f := m.Lookup(k)
				found := f.Found()
				f.Release()
				if !found {
					return fmt.Errorf("worker %d: key %d not found immediately after insert", w, k)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, workers*perWorker, m.NrUsed())
}
