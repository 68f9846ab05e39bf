// Package bitset implements a fixed-width boolean vector over a dense
// range of non-negative integer ids, used throughout the planner to track
// per-predicate truth, effect, and precondition sets.
package bitset

import "math/bits"

const wordBits = 64

// Bitset is a fixed-width bit vector over [0, n).
type Bitset struct {
	n     int
	words []uint64
}

// New creates a Bitset able to hold ids in [0, n).
func New(n int) *Bitset {
	if n < 0 {
		n = 0
	}
	return &Bitset{n: n, words: make([]uint64, (n+wordBits-1)/wordBits)}
}

// Len returns the declared bit-width of the set (not its popcount).
func (b *Bitset) Len() int { return b.n }

func (b *Bitset) wordIdx(i int) (int, uint64) {
	return i / wordBits, uint64(1) << uint(i%wordBits)
}

// Set sets bit i. Returns true if the bit changed from 0 to 1.
func (b *Bitset) Set(i int) bool {
	w, m := b.wordIdx(i)
	old := b.words[w]
	b.words[w] = old | m
	return old&m == 0
}

// Clear clears bit i. Returns true if the bit changed from 1 to 0.
func (b *Bitset) Clear(i int) bool {
	w, m := b.wordIdx(i)
	old := b.words[w]
	b.words[w] = old &^ m
	return old&m != 0
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i int) bool {
	w, m := b.wordIdx(i)
	return b.words[w]&m != 0
}

// Clone returns an independent copy.
func (b *Bitset) Clone() *Bitset {
	c := &Bitset{n: b.n, words: make([]uint64, len(b.words))}
	copy(c.words, b.words)
	return c
}

// OrWith sets b to b|other in place. Returns true if b changed.
func (b *Bitset) OrWith(other *Bitset) bool {
	changed := false
	for i, w := range other.words {
		nw := b.words[i] | w
		if nw != b.words[i] {
			changed = true
			b.words[i] = nw
		}
	}
	return changed
}

// AndWith sets b to b&other in place. Returns true if b changed.
func (b *Bitset) AndWith(other *Bitset) bool {
	changed := false
	for i := range b.words {
		var ow uint64
		if i < len(other.words) {
			ow = other.words[i]
		}
		nw := b.words[i] & ow
		if nw != b.words[i] {
			changed = true
			b.words[i] = nw
		}
	}
	return changed
}

// MinusWith removes every bit also set in other, in place. Returns true if
// b changed.
func (b *Bitset) MinusWith(other *Bitset) bool {
	changed := false
	for i, w := range other.words {
		nw := b.words[i] &^ w
		if nw != b.words[i] {
			changed = true
			b.words[i] = nw
		}
	}
	return changed
}

// IsEmpty reports whether no bit is set.
func (b *Bitset) IsEmpty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Popcount returns the number of set bits.
func (b *Bitset) Popcount() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// ForEachSet calls cb(i) for every set bit i, in increasing order.
func (b *Bitset) ForEachSet(cb func(i int)) {
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			cb(wi*wordBits + tz)
			w &= w - 1
		}
	}
}

// Slice returns the set bits as a sorted []int.
func (b *Bitset) Slice() []int {
	out := make([]int, 0, b.Popcount())
	b.ForEachSet(func(i int) { out = append(out, i) })
	return out
}

// Equal reports whether b and other have exactly the same set bits.
func (b *Bitset) Equal(other *Bitset) bool {
	n := len(b.words)
	if len(other.words) != n {
		return false
	}
	for i := 0; i < n; i++ {
		if b.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether b and other share any set bit.
func (b *Bitset) Intersects(other *Bitset) bool {
	n := len(b.words)
	if len(other.words) < n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		if b.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// FromSlice builds a Bitset of width n with the given ids set.
func FromSlice(n int, ids []int) *Bitset {
	b := New(n)
	for _, id := range ids {
		b.Set(id)
	}
	return b
}
