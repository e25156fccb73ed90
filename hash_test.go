package cuckoomap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestH1DeterministicPerSeed(t *testing.T) {
	data := []byte("repeatable")
	a := h1(data, 1)
	b := h1(data, 1)
	assert.Equal(t, a, b)
}

func TestH1VariesBySeed(t *testing.T) {
	data := []byte("same key, different subtable")
	a := h1(data, 1)
	b := h1(data, 2)
	assert.NotEqual(t, a, b, "two subtables seeded differently should not compute the same H1 for a shared key")
}

func TestH2DeterministicPerSeed(t *testing.T) {
	data := []byte("repeatable")
	assert.Equal(t, h2(data, 7), h2(data, 7))
}

func TestH2VariesByData(t *testing.T) {
	assert.NotEqual(t, h2([]byte("alpha"), 1), h2([]byte("beta"), 1))
}

func TestFingerprintDeterministic(t *testing.T) {
	data := []byte("stable-key")
	assert.Equal(t, fingerprint(data, 3), fingerprint(data, 3))
}

func TestFingerprintMasked(t *testing.T) {
	for i := 0; i < 1000; i++ {
		data := []byte{byte(i), byte(i >> 8)}
		fp := fingerprint(data, uint32(i))
		assert.LessOrEqual(t, fp, uint32(fingerprintMask))
		assert.NotZero(t, fp)
	}
}

func TestFoldWordsHandlesShortTail(t *testing.T) {
	for n := 0; n <= 9; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i + 1)
		}
		var words []uint32
		foldWords(data, func(w uint32) { words = append(words, w) })
		if n == 0 {
			assert.Empty(t, words)
			continue
		}
		assert.NotEmpty(t, words, "non-empty input of length %d must fold into at least one word", n)
	}
}
