package cuckoomap

// KeyTraits tells a Map how to treat a caller-supplied key type K:
// how to obtain its byte image for hashing, how to compare two keys
// for equality, and how to recognize the canonical empty state (spec
// §3, "Key").
//
// K itself is expected to be default-constructible to its empty state
// and copyable by assignment -- both properties any plain Go struct,
// array, or scalar already has. Bytes and Equal must agree with each
// other: any two keys Equal reports equal must produce identical Bytes
// images (spec §4.1). Emptiness is decided by Empty alone: the
// fingerprint derivation never yields the reserved empty value, and
// an empty key is kept out of the table by Insert refusing it.
type KeyTraits[K any] struct {
	// Bytes returns the byte image of k that H1, H2, and the
	// fingerprint derivation hash. It must be stable for the
	// lifetime of any entry (spec §3).
	Bytes func(k K) []byte

	// Equal reports whether two keys are the same entry. It need not
	// be Go's built-in ==; callers may ignore padding or
	// non-identifying fields.
	Equal func(a, b K) bool

	// Empty reports whether k is in its canonical empty state.
	// Inserting a key for which Empty returns true is a caller error
	// (spec §4.2, "Edge cases").
	Empty func(k K) bool
}

func (t KeyTraits[K]) validate() {
	if t.Bytes == nil || t.Equal == nil || t.Empty == nil {
		panic("cuckoomap: KeyTraits requires Bytes, Equal, and Empty functions")
	}
}
