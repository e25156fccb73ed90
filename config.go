// Copyright (c) 2014 Utkan Güngördü <utkan@freeconsole.org>
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

// Package cuckoomap implements a concurrent, in-memory associative
// container over fixed-layout keys and values using bucketized cuckoo
// hashing augmented with a cascade of overflow subtables.
//
// A single subtable gives each key two candidate buckets (H1 and H2
// modulo the bucket count) of bucketSlots slots each. Insertion that
// cannot find an empty slot performs a bounded random-walk eviction;
// when the walk's kick budget is exhausted the table reports overflow
// instead of growing itself. The Map that owns the cascade of
// subtables reacts to overflow by spilling into the next layer,
// appending a new, geometrically larger layer on demand. Lookups that
// find a key in a layer above 0 promote it back down, so a hot working
// set migrates toward the cheapest layer over time.
//
// A Map is not safe to use without its own lock held; every exported
// operation acquires it internally via a single coarse sync.Mutex. A
// Finding returned by Lookup or InsertFinding holds that lock until
// Release is called -- calling back into the same Map from the same
// goroutine while a Finding is live deadlocks, by design (see
// Finding's doc).
package cuckoomap

// configurable variables (for tuning the algorithm)
const (
	// bucketSlots is the number of (fingerprint, key, value) slots in
	// one bucket -- B in the design doc.
	bucketSlots = 4

	// layerGrowthFactor is how much larger each cascade layer is than
	// the one before it, in bucket count.
	layerGrowthFactor = 4

	// kickBudgetFloor is the minimum number of evictions a single
	// insert may perform in one subtable before signalling overflow,
	// regardless of how small that subtable is.
	kickBudgetFloor = 32

	// randomWalkCoefficient scales the kick budget with the log2 of
	// the subtable's bucket count, the same shape as the teacher's
	// own (1+logsize)*randomWalkCoefficient formula, just rebased to
	// this design's fixed bucket width.
	randomWalkCoefficient = 4

	// layerRetries is the number of fresh random-walk attempts the
	// cascade gives a single layer before treating it as full and
	// spilling to the next one (spec §4.3, "Rationale for the
	// triplicate retry").
	layerRetries = 3

	// fingerprintBits is the width of the fingerprint stored per slot.
	fingerprintBits = 16
	fingerprintMask = (1 << fingerprintBits) - 1
)

// DefaultInitialBuckets is a reasonable layer-0 bucket count to use
// with New when the eventual size of the map isn't known ahead of
// time.
const DefaultInitialBuckets = 1 << 8
