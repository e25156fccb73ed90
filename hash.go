// Copyright (c) 2014-2015 Utkan Güngördü <utkan@freeconsole.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cuckoomap

import "github.com/cespare/xxhash/v2"

// Two independent keyed hashes, H1 and H2, and a fingerprint
// derivation are computed over a key's byte image (spec §4.1). H1
// leans on a real production hash (xxHash64, seeded per subtable); H2
// and the fingerprint keep the teacher's own murmur3/mem-shaped
// per-word mixing, generalized from a single uint32 to an arbitrary
// byte slice by folding it one 4-byte word at a time.

const (
	murmur3C1 uint32 = 0xcc9e2d51
	murmur3C2 uint32 = 0x1b873593
)

const (
	memC0 uint32 = 2860486313
	memC1 uint32 = 3267000013
)

// h1 is the first candidate-bucket hash: a production xxHash64 over
// the key's byte image, seeded per subtable so each subtable computes
// its own, independent bucket assignment for a key.
func h1(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	d.Write(data) //nolint:errcheck // hash.Hash64.Write never returns an error
	return d.Sum64()
}

// h2 is the second candidate-bucket hash: a murmur3-shaped round
// folded word-by-word over data, independent of h1's seed.
func h2(data []byte, seed uint32) uint32 {
	h := seed
	foldWords(data, func(word uint32) {
		k := word * murmur3C1
		k = (k << 15) | (k >> (32 - 15))
		k *= murmur3C2

		h ^= k
		h = (h << 13) | (h >> (32 - 13))
		h = (h<<2 + h) + 0xe6546b64
	})
	return h
}

// fingerprint derives a small nonzero integer from a key's byte
// image, folding a mem-shaped round over the data and masking the
// result to fingerprintBits. A zero result is rerouted to 1, since
// zero is reserved to mean "slot empty" (spec §4.1, §9).
func fingerprint(data []byte, seed uint32) uint32 {
	h := seed ^ memC0
	foldWords(data, func(word uint32) {
		h ^= (word & 0xff) * memC1
		h ^= (word >> 8 & 0xff) * memC1
		h ^= (word >> 16 & 0xff) * memC1
		h ^= (word >> 24 & 0xff) * memC1
	})
	fp := h & fingerprintMask
	if fp == 0 {
		fp = 1
	}
	return fp
}

// foldWords calls mix once per 4-byte word of data, zero-padding a
// short trailing word so callers never see a partial read.
func foldWords(data []byte, mix func(word uint32)) {
	i := 0
	for ; i+4 <= len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		mix(word)
	}
	if i < len(data) {
		var word uint32
		for j := 0; i+j < len(data); j++ {
			word |= uint32(data[i+j]) << (8 * j)
		}
		mix(word)
	}
}
