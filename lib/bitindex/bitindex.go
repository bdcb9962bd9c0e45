// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bitindex

// Vector is a bit-vector view over a byte slice. The zero value is an
// empty vector with no addressable bits.
type Vector []byte

// Len returns the number of addressable bits.
func (v Vector) Len() int {
	return len(v) * 8
}

// Get reports whether bit i is set. Bits beyond the end of the vector
// read as clear.
func (v Vector) Get(i int) bool {
	if i < 0 || i >= v.Len() {
		return false
	}
	return v[i/8]>>(uint(i)%8)&1 == 1
}

// Set sets bit i to value. It panics if i is out of range, like an
// out-of-range slice index.
func (v Vector) Set(i int, value bool) {
	mask := byte(1) << (uint(i) % 8)
	if value {
		v[i/8] |= mask
	} else {
		v[i/8] &^= mask
	}
}

// FirstClear returns the index of the first clear bit in [from, limit).
// The limit is clamped to Len. The second result is false when every
// bit in the range is set.
func (v Vector) FirstClear(from, limit int) (int, bool) {
	if limit > v.Len() {
		limit = v.Len()
	}
	if from < 0 {
		from = 0
	}
	for i := from; i < limit; i++ {
		// Skip whole bytes that are fully set.
		if i%8 == 0 && i+8 <= limit && v[i/8] == 0xff {
			i += 7
			continue
		}
		if !v.Get(i) {
			return i, true
		}
	}
	return 0, false
}

// Count returns the number of set bits in [0, limit).
func (v Vector) Count(limit int) int {
	if limit > v.Len() {
		limit = v.Len()
	}
	count := 0
	for i := 0; i < limit; i++ {
		if v.Get(i) {
			count++
		}
	}
	return count
}
