package cuckoomap

import "math/bits"

// slot is one (fingerprint, key, value) cell. A slot is empty iff fp
// is zero; fingerprint derivation guarantees no occupied slot ever
// has fp == 0 (spec §3, "Slot").
type slot[K any, V any] struct {
	fp  uint32
	key K
	val V
}

// bucket is a run of bucketSlots contiguous slots.
type bucket[K any, V any] struct {
	slots [bucketSlots]slot[K, V]
}

// insertStatus is the tri-valued result of a subtable insert attempt
// (spec §4.2, "Insert").
type insertStatus int8

const (
	statusDuplicate insertStatus = -1
	statusInserted  insertStatus = 0
	statusOverflow  insertStatus = 1
)

// subtable is one layer of the cascade: a flat array of nBuckets
// buckets, each bucketSlots slots wide, holding no lock of its own.
// It is created once and never resized (spec §3, "Lifecycles" --
// subtable resizing is an explicit non-goal).
type subtable[K any, V any] struct {
	buckets  []bucket[K, V]
	nBuckets uint64

	traits KeyTraits[K]

	seed1, seed2, seedFP uint32
	xseed                uint64 // seed for the xxHash-backed H1

	kickBudget int
	rng        *fastrand
}

func newSubtable[K any, V any](nBuckets int, traits KeyTraits[K], seed uint64) *subtable[K, V] {
	if nBuckets < 1 {
		nBuckets = 1
	}
	st := &subtable[K, V]{
		buckets:  make([]bucket[K, V], nBuckets),
		nBuckets: uint64(nBuckets),
		traits:   traits,
		xseed:    seed,
		seed1:    uint32(seed),
		seed2:    uint32(seed>>32) | 1,
		seedFP:   uint32(seed*2654435761) | 1,
		rng:      newFastrand(uint32(seed ^ (seed >> 17))),
	}
	st.kickBudget = kickBudgetFor(nBuckets)
	return st
}

// kickBudgetFor mirrors the teacher's own (1+logsize)*coefficient
// shape (salviati-cuckoo's tryGreedyAdd), floored so small subtables
// still get a reasonable number of eviction attempts.
func kickBudgetFor(nBuckets int) int {
	logsize := bits.Len(uint(nBuckets))
	budget := (1 + logsize) * randomWalkCoefficient
	if budget < kickBudgetFloor {
		budget = kickBudgetFloor
	}
	return budget
}

func (st *subtable[K, V]) bucketIndex(h uint64) uint64 {
	return h % st.nBuckets
}

// candidates returns the key's fingerprint and its two candidate
// bucket indices in this subtable (spec §3, "Bucket").
func (st *subtable[K, V]) candidates(k K) (fp uint32, b1, b2 uint64) {
	data := st.traits.Bytes(k)
	fp = fingerprint(data, st.seedFP)
	b1 = st.bucketIndex(h1(data, st.xseed))
	b2 = st.bucketIndex(uint64(h2(data, st.seed2)))
	return fp, b1, b2
}

// scanBucket looks for a slot in bucket bi whose fingerprint matches
// fp and whose key equals k.
func (st *subtable[K, V]) scanBucket(bi uint64, fp uint32, k K) *slot[K, V] {
	bkt := &st.buckets[bi]
	for i := range bkt.slots {
		sl := &bkt.slots[i]
		if sl.fp != 0 && sl.fp == fp && st.traits.Equal(sl.key, k) {
			return sl
		}
	}
	return nil
}

// lookup scans both of k's candidate buckets and returns a pointer to
// the live slot holding it, if any (spec §4.2, "Lookup").
func (st *subtable[K, V]) lookup(k K) (*slot[K, V], bool) {
	fp, b1, b2 := st.candidates(k)
	if sl := st.scanBucket(b1, fp, k); sl != nil {
		return sl, true
	}
	if b2 != b1 {
		if sl := st.scanBucket(b2, fp, k); sl != nil {
			return sl, true
		}
	}
	return nil, false
}

// remove zeros the fingerprint of a slot obtained from a prior lookup
// held under the same lock. Key/value storage is left as-is (spec
// §4.2, "Remove").
func (st *subtable[K, V]) remove(sl *slot[K, V]) {
	sl.fp = 0
}

// scanForDupOrEmpty scans both candidate buckets once. If an equal
// key is already present it reports dup=true. Otherwise it returns a
// pointer to the first empty slot encountered, if any.
func (st *subtable[K, V]) scanForDupOrEmpty(k K, fp uint32, b1, b2 uint64) (dup bool, empty *slot[K, V]) {
	check := func(bi uint64) bool {
		bkt := &st.buckets[bi]
		for i := range bkt.slots {
			sl := &bkt.slots[i]
			if sl.fp == 0 {
				if empty == nil {
					empty = sl
				}
				continue
			}
			if sl.fp == fp && st.traits.Equal(sl.key, k) {
				return true
			}
		}
		return false
	}
	if check(b1) {
		return true, nil
	}
	if b2 != b1 && check(b2) {
		return true, nil
	}
	return false, empty
}

// insert attempts to place (origK, origV) into this subtable.
//
// It returns the tri-valued status (spec §4.2): statusDuplicate if an
// equal key is already present (table unchanged); statusInserted if
// the pair (or, after a random walk, some evicted pair) found a home
// within the kick budget; statusOverflow if the budget was exhausted,
// in which case carryK/carryV is whatever pair is left in hand and
// must be absorbed by the next cascade layer.
//
// restSlot reports origK's current resting slot, updated every time
// the random walk places or displaces it -- not just the first time
// it is placed. A single call can legitimately kick origK's own pair
// more than once (the walk's next candidate buckets can include the
// one just written to), so restSlot must track where it is now, not
// where it first landed. It is nil whenever origK is in hand rather
// than resting. It is still reported when the call as a whole returns
// statusOverflow because some *other*, previously resident pair was
// the one being carried when the budget ran out (spec
// §4.3, "Original-key threading"; §9, Open Questions -- resolved to
// always surface this pointer rather than drop it).
func (st *subtable[K, V]) insert(origK K, origV V) (status insertStatus, carryK K, carryV V, restSlot *slot[K, V]) {
	fp, b1, b2 := st.candidates(origK)

	if dup, empty := st.scanForDupOrEmpty(origK, fp, b1, b2); dup {
		return statusDuplicate, origK, origV, nil
	} else if empty != nil {
		empty.fp = fp
		empty.key = origK
		empty.val = origV
		return statusInserted, origK, origV, empty
	}

	curK, curV, curFP := origK, origV, fp
	curB1, curB2 := b1, b2

	for step := 0; step < st.kickBudget; step++ {
		evictFromB2 := st.rng.next()&1 == 1
		bi := curB1
		if evictFromB2 {
			bi = curB2
		}
		si := st.rng.intn(bucketSlots)

		bkt := &st.buckets[bi]
		evSlot := &bkt.slots[si]
		evK, evV := evSlot.key, evSlot.val

		evSlot.fp = curFP
		evSlot.key = curK
		evSlot.val = curV
		if st.traits.Equal(curK, origK) {
			restSlot = evSlot
		} else if st.traits.Equal(evK, origK) {
			// origK was resting in this slot and is being evicted by a
			// different pair; it is now in hand (evK/evV below) rather
			// than resting anywhere, until it lands somewhere else.
			restSlot = nil
		}

		evFP, evB1, evB2 := st.candidates(evK)
		otherB := evB1
		if bi == evB1 {
			otherB = evB2
		}

		obkt := &st.buckets[otherB]
		placed := false
		for j := range obkt.slots {
			if obkt.slots[j].fp == 0 {
				obkt.slots[j].fp = evFP
				obkt.slots[j].key = evK
				obkt.slots[j].val = evV
				if st.traits.Equal(evK, origK) {
					restSlot = &obkt.slots[j]
				}
				placed = true
				break
			}
		}
		if placed {
			return statusInserted, origK, origV, restSlot
		}

		curK, curV, curFP = evK, evV, evFP
		curB1, curB2 = evB1, otherB
	}

	return statusOverflow, curK, curV, restSlot
}
