// Package gf2 solves linear systems whose coefficient matrix is binary
// and whose right-hand side lives in GF(2^l). Row operations only ever
// XOR elements, so the extension field never needs multiplication here.
package gf2

import (
	"crypto/subtle"

	"github.com/bits-and-blooms/bitset"
)

// Status reports the outcome of a solve.
type Status int

const (
	// Consistent means a solution was found. For FullSolve it also means
	// the rows are linearly independent.
	Consistent Status = iota
	// Inconsistent means the system has no solution.
	Inconsistent
	// Underdetermined means the rows are linearly dependent. FullSolve
	// reports it even when the dependent rows happen to agree.
	Underdetermined
)

func (s Status) String() string {
	switch s {
	case Consistent:
		return "consistent"
	case Inconsistent:
		return "inconsistent"
	case Underdetermined:
		return "underdetermined"
	default:
		return "unknown"
	}
}

// FullSolve solves rows·x = rhs over width columns, where bit j of a
// row is the coefficient of column j. Every free variable
// is assigned a fresh element from random, so when the rows are
// independent the returned solution is uniform among all solutions.
func FullSolve(rows []*bitset.BitSet, width int, rhs [][]byte, random func() []byte) (Status, [][]byte) {
	return solve(rows, width, rhs, random, true)
}

// FreeSolve solves rows·x = rhs over width columns and assigns zero to
// every free variable. Dependent but consistent rows are accepted.
func FreeSolve(rows []*bitset.BitSet, width int, rhs [][]byte, byteL int) (Status, [][]byte) {
	zero := func() []byte { return make([]byte, byteL) }
	return solve(rows, width, rhs, zero, false)
}

func solve(rows []*bitset.BitSet, width int, rhs [][]byte, free func() []byte, strict bool) (Status, [][]byte) {
	if len(rows) != len(rhs) {
		panic("gf2: row count and right-hand side length differ")
	}
	m := len(rows)
	a := make([]*bitset.BitSet, m)
	b := make([][]byte, m)
	for i := range rows {
		a[i] = rows[i].Clone()
		b[i] = append([]byte(nil), rhs[i]...)
	}

	// Reduce to row echelon form with every pivot column cleared in all
	// other rows.
	pivots := make([]int, 0, min(m, width))
	rank := 0
	for c := 0; c < width && rank < m; c++ {
		p := -1
		for i := rank; i < m; i++ {
			if a[i].Test(uint(c)) {
				p = i
				break
			}
		}
		if p < 0 {
			continue
		}
		a[rank], a[p] = a[p], a[rank]
		b[rank], b[p] = b[p], b[rank]
		for i := 0; i < m; i++ {
			if i != rank && a[i].Test(uint(c)) {
				a[i].InPlaceSymmetricDifference(a[rank])
				subtle.XORBytes(b[i], b[i], b[rank])
			}
		}
		pivots = append(pivots, c)
		rank++
	}

	for i := rank; i < m; i++ {
		if !isZero(b[i]) {
			return Inconsistent, nil
		}
	}
	if strict && rank < m {
		return Underdetermined, nil
	}

	isPivot := make([]bool, width)
	for _, c := range pivots {
		isPivot[c] = true
	}
	x := make([][]byte, width)
	for c := 0; c < width; c++ {
		if !isPivot[c] {
			x[c] = free()
		}
	}
	for i := 0; i < rank; i++ {
		c := pivots[i]
		v := b[i]
		for j, ok := a[i].NextSet(0); ok; j, ok = a[i].NextSet(j + 1) {
			if int(j) != c && int(j) < width {
				subtle.XORBytes(v, v, x[j])
			}
		}
		x[c] = v
	}
	return Consistent, x
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
