package cuckoomap

// Finding is a scoped handle on one slot of a Map, returned by
// Lookup and InsertFinding, or filled in by LookupInto (spec §4.4,
// "Finding"). While
// a Finding is alive it holds its Map's single mutex: other goroutines
// block on any method of the same Map, and the owning goroutine itself
// deadlocks if it calls back into the Map before releasing the
// Finding. This is deliberate -- a Finding exists to let a caller read
// or mutate a value in place without a second lookup, not to be held
// across unrelated work.
type Finding[K any, V any] struct {
	m      *Map[K, V]
	slot   *slot[K, V]
	locked bool
}

// Found reports whether the Finding refers to a live entry.
func (f *Finding[K, V]) Found() bool {
	return f.slot != nil
}

// Key returns a pointer to the found entry's key. It panics if Found
// is false.
func (f *Finding[K, V]) Key() *K {
	f.mustFound()
	return &f.slot.key
}

// Value returns a pointer to the found entry's value, usable to read
// or mutate it in place under the Map's lock. It panics if Found is
// false.
func (f *Finding[K, V]) Value() *V {
	f.mustFound()
	return &f.slot.val
}

func (f *Finding[K, V]) mustFound() {
	if f.slot == nil {
		panic("cuckoomap: Finding has no entry; check Found before Key/Value")
	}
}

// Next reports whether a further value is available for this
// Finding's key. This core holds at most one value per key, so Next
// always returns false; the method exists purely for API parity with
// a multi-valued sibling container (spec §4.4, "Stubs next() and
// get(i)").
func (f *Finding[K, V]) Next() bool {
	return false
}

// Get reports whether the i'th value is available for this Finding's
// key. Like Next, this core never has more than one value per key, so
// Get always returns false (spec §4.4).
func (f *Finding[K, V]) Get(i int) bool {
	return false
}

// Release unlocks the Finding's Map and detaches the Finding from it.
// It is safe to call Release more than once or on a Finding that was
// never bound to a Map.
func (f *Finding[K, V]) Release() {
	if f.locked {
		f.m.mu.Unlock()
	}
	f.m = nil
	f.slot = nil
	f.locked = false
}

// rebind prepares f to be reused against a (possibly different) Map,
// releasing whatever lock it currently holds first (spec §4.4, "A
// Finding may be reused across maps").
func (f *Finding[K, V]) rebind(m *Map[K, V]) {
	if f.locked {
		f.m.mu.Unlock()
	}
	f.m = m
	f.slot = nil
	f.locked = false
}
