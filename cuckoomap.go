package cuckoomap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aristanetworks/glog"
)

// ErrLayerAllocation is wrapped by the error InsertErr returns when
// appending a new cascade layer fails. The map's invariants are left
// intact: the partial layer is discarded, the layer list is not
// mutated, and the pair being inserted is lost to the caller (spec
// §7, "allocation failure when appending a layer").
var ErrLayerAllocation = errors.New("cuckoomap: failed to allocate overflow layer")

// Map is the cascaded cuckoo hash table (spec §3, "CuckooMap"). It
// owns an append-only ordered list of subtables -- layer 0 is the
// primary, every later layer is a geometrically larger overflow tier
// -- one sync.Mutex, and a used-entry counter.
//
// Every exported method acquires the mutex. Lookup (and
// InsertFinding) hand back a *Finding that keeps holding it until
// Release is called; calling any other method of the same Map from
// the same goroutine while such a Finding is alive deadlocks (spec
// §5, "Suspension points" -- self-reentrancy is not supported).
type Map[K any, V any] struct {
	mu sync.Mutex

	layers []*subtable[K, V]
	used   int

	traits   KeyTraits[K]
	seedNext uint64
}

// New constructs a Map whose layer-0 subtable has initialBuckets
// buckets. Bucket width (B) and kick budget (M) are the package's
// compile-time constants (spec §6, "Constructor").
func New[K any, V any](initialBuckets int, traits KeyTraits[K]) *Map[K, V] {
	traits.validate()
	if initialBuckets < 1 {
		initialBuckets = DefaultInitialBuckets
	}
	m := &Map[K, V]{traits: traits, seedNext: 0x9e3779b97f4a7c15}
	m.layers = append(m.layers, newSubtable[K, V](initialBuckets, m.traits, m.nextSeed()))
	return m
}

// nextSeed hands out a fresh per-layer seed from a splitmix64-shaped
// stream, so every subtable's pair of hash functions is independent
// of every other layer's.
func (m *Map[K, V]) nextSeed() uint64 {
	m.seedNext += 0x9e3779b97f4a7c15
	z := m.seedNext
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Lookup returns a Finding holding the Map's lock for its lifetime. If
// k is found in a layer above 0 it is promoted back to the cascade
// starting at layer 0 before the Finding is returned (spec §4.3,
// "Lookup"). If k is not found, the returned Finding's Found reports
// false but still holds the lock, so the caller may chain further
// operations against it.
func (m *Map[K, V]) Lookup(k K) *Finding[K, V] {
	f := &Finding[K, V]{}
	m.LookupInto(k, f)
	return f
}

// LookupInto performs the same lookup as Lookup, but reuses f: any
// lock f held on a different map is released first, and f is rebound
// to m (spec §4.4, "A Finding may be reused across maps"). It returns
// f.Found().
func (m *Map[K, V]) LookupInto(k K, f *Finding[K, V]) bool {
	f.rebind(m)
	m.mu.Lock()
	f.locked = true
	f.slot = m.lookupCascadeLocked(k)
	return f.Found()
}

// lookupCascadeLocked assumes m.mu is held. It scans layers in order;
// on a hit above layer 0 it promotes the entry back to layer 0 (or
// wherever the cascade places it) before returning.
func (m *Map[K, V]) lookupCascadeLocked(k K) *slot[K, V] {
	for i, st := range m.layers {
		sl, ok := st.lookup(k)
		if !ok {
			continue
		}
		if i == 0 {
			return sl
		}

		origK, origV := sl.key, sl.val
		st.remove(sl)

		newSlot, ok, err := m.cascadeInsertLocked(origK, origV)
		if err != nil || !ok {
			// Promotion reinsert failing would violate invariant L1
			// (the entry would vanish); put it back where it was
			// rather than lose it.
			glog.Errorf("cuckoomap: promotion of key failed, leaving entry at its original layer: %v", err)
			sl.fp, sl.key, sl.val = func() (uint32, K, V) {
				fp, _, _ := st.candidates(origK)
				return fp, origK, origV
			}()
			return sl
		}
		return newSlot
	}
	return nil
}

// Insert places (k, v) into the map, returning false without
// modifying the map if an equal key is already present. It panics if
// k is in its empty state (spec §4.2, "Edge cases" -- inserting an
// equal-empty key is a caller error). Allocation faults while growing
// the cascade are swallowed as a false return; use InsertErr to
// observe them.
func (m *Map[K, V]) Insert(k K, v V) bool {
	ok, _ := m.InsertErr(k, v)
	return ok
}

// InsertErr is Insert, but surfaces a wrapped ErrLayerAllocation
// instead of silently treating an allocation fault as "not inserted"
// (spec §7).
func (m *Map[K, V]) InsertErr(k K, v V) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok, err := m.insertLocked(k, v)
	return ok, err
}

// InsertFinding is Insert, but returns a Finding holding the Map's
// lock, pointing at the pair's resting slot when insertion succeeds.
// The caller must Release the Finding.
func (m *Map[K, V]) InsertFinding(k K, v V) (bool, *Finding[K, V]) {
	m.mu.Lock()
	sl, ok, _ := m.insertLocked(k, v)
	f := &Finding[K, V]{m: m, locked: true}
	if ok {
		f.slot = sl
	}
	return ok, f
}

func (m *Map[K, V]) insertLocked(k K, v V) (*slot[K, V], bool, error) {
	if m.traits.Empty(k) {
		panic("cuckoomap: cannot insert a key in its empty state")
	}
	for _, st := range m.layers[1:] {
		if _, found := st.lookup(k); found {
			return nil, false, nil
		}
	}
	sl, ok, err := m.cascadeInsertLocked(k, v)
	if ok {
		m.used++
	}
	return sl, ok, err
}

// cascadeInsertLocked runs the cascade insert algorithm (spec §4.3,
// "Insert"): at each layer, up to layerRetries fresh random-walk
// attempts to absorb the current carried pair; on repeated overflow,
// move to the next layer, appending one if the cascade has run out.
// It does not touch the used counter -- callers decide whether this
// call represents a new entry (Insert) or a promotion (no change).
func (m *Map[K, V]) cascadeInsertLocked(origK K, origV V) (restSlot *slot[K, V], ok bool, err error) {
	curK, curV := origK, origV
	li := 0

	for {
		if li == len(m.layers) {
			if growErr := m.growLayer(); growErr != nil {
				return nil, false, growErr
			}
		}
		st := m.layers[li]

		var (
			status insertStatus
			carryK K
			carryV V
			local  *slot[K, V]
		)
		for attempt := 0; attempt < layerRetries; attempt++ {
			status, carryK, carryV, local = st.insert(curK, curV)
			if m.traits.Equal(curK, origK) {
				restSlot = local
			}
			if status != statusOverflow {
				break
			}
			curK, curV = carryK, carryV
		}

		switch status {
		case statusDuplicate:
			return nil, false, nil
		case statusInserted:
			if restSlot == nil || restSlot.fp == 0 || !m.traits.Equal(restSlot.key, origK) {
				restSlot = nil
				for _, l := range m.layers {
					if sl, found := l.lookup(origK); found {
						restSlot = sl
						break
					}
				}
			}
			return restSlot, true, nil
		default: // statusOverflow
			li++
		}
	}
}

// growLayer appends a new subtable sized layerGrowthFactor times the
// current last layer's bucket count. On an allocation fault the new
// subtable is discarded and the layer list is left untouched (spec
// §7).
func (m *Map[K, V]) growLayer() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLayerAllocation, r)
		}
	}()

	last := m.layers[len(m.layers)-1]
	nb := int(last.nBuckets) * layerGrowthFactor
	nt := newSubtable[K, V](nb, m.traits, m.nextSeed())
	m.layers = append(m.layers, nt)
	glog.V(1).Infof("cuckoomap: grew cascade to %d layers (%d buckets in new layer)", len(m.layers), nb)
	return nil
}

// Remove deletes k from the map, returning whether it was present.
func (m *Map[K, V]) Remove(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.layers {
		if sl, ok := st.lookup(k); ok {
			st.remove(sl)
			m.used--
			return true
		}
	}
	return false
}

// RemoveFinding removes the entry f points at, using the lock f
// already holds rather than acquiring a fresh one (since f's lock is
// m's lock, reacquiring it from the same goroutine would deadlock --
// spec §5). It returns false if f does not hold a found entry in m.
func (m *Map[K, V]) RemoveFinding(f *Finding[K, V]) bool {
	if f == nil || f.m != m || !f.locked || f.slot == nil {
		return false
	}
	f.slot.fp = 0
	m.used--
	f.slot = nil
	return true
}

// NrUsed returns the number of entries currently stored across all
// layers.
func (m *Map[K, V]) NrUsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// LayerOf reports which cascade layer currently holds k, without
// promoting it. It exists purely as a white-box instrumentation hook
// for observing promotion (spec §8, Testable Property 5 and scenario
// S6 call this out explicitly as "observable via
// instrumentation/white-box test").
func (m *Map[K, V]) LayerOf(k K) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, st := range m.layers {
		if _, ok := st.lookup(k); ok {
			return i, true
		}
	}
	return 0, false
}

// NumLayers returns the current number of cascade layers, for tests
// and operational metrics.
func (m *Map[K, V]) NumLayers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.layers)
}
