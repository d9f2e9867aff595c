package dokvs

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
)

// distinctPositions maps raw hash words to len(raw) distinct slots of
// [0, rangeM). Word i is reduced modulo rangeM-i, then pushed upward past
// every slot already placed that is less than or equal to it, scanning
// placed slots in ascending order. The result is ascending.
func distinctPositions(raw []uint32, rangeM int) []int {
	placed := make([]int, 0, len(raw))
	for i, w := range raw {
		r := int(uint64(w) % uint64(rangeM-i))
		at := 0
		for at < len(placed) && placed[at] <= r {
			r++
			at++
		}
		placed = append(placed, 0)
		copy(placed[at+1:], placed[at:])
		placed[at] = r
	}
	return placed
}

// rawWords splits the first count 4-byte words out of b.
func rawWords(b []byte, count int) []uint32 {
	words := make([]uint32, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[4*i:])
	}
	return words
}

// residues reduces every word modulo rangeM and drops repeats, keeping
// first occurrences.
func residues(raw []uint32, rangeM int) []int {
	out := make([]int, 0, len(raw))
	for _, w := range raw {
		r := int(uint64(w) % uint64(rangeM))
		dup := false
		for _, p := range out {
			if p == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

// denseSet unpacks the first width bits of the big-endian bit vector v
// into a bit set indexed by dense column.
func denseSet(v []byte, width int) *bitset.BitSet {
	set := bitset.New(uint(width))
	for j := 0; j < width; j++ {
		if v[j>>3]>>(7-uint(j)&7)&1 == 1 {
			set.Set(uint(j))
		}
	}
	return set
}

// setBits returns the indices of the set bits among the first width bits
// of the big-endian bit vector v.
func setBits(v []byte, width int) []int {
	set := denseSet(v, width)
	out := make([]int, 0, set.Count())
	for j, ok := set.NextSet(0); ok; j, ok = set.NextSet(j + 1) {
		out = append(out, int(j))
	}
	return out
}
