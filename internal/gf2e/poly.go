package gf2e

import (
	"errors"
	"fmt"
)

// ErrDuplicatePoint is returned when two interpolation points share an
// x-coordinate.
var ErrDuplicatePoint = errors.New("gf2e: duplicate interpolation point")

// Interpolate returns the coefficients, constant term first, of the
// unique polynomial of degree < len(xs) passing through (xs[i], ys[i]).
func (f *Field) Interpolate(xs, ys [][]byte) ([][]byte, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("gf2e: %d x-coordinates but %d y-coordinates", len(xs), len(ys))
	}
	k := len(xs)
	if k == 0 {
		return [][]byte{}, nil
	}
	seen := make(map[string]struct{}, k)
	for _, x := range xs {
		if _, ok := seen[string(x)]; ok {
			return nil, ErrDuplicatePoint
		}
		seen[string(x)] = struct{}{}
	}

	// master = prod (x - xs[i]), coefficients master[0..k].
	master := make([][]byte, k+1)
	master[0] = f.One()
	for j := 1; j <= k; j++ {
		master[j] = f.Zero()
	}
	for i, xi := range xs {
		// Multiply the degree-i prefix by (x + xi).
		for j := i + 1; j >= 1; j-- {
			master[j] = f.Add(master[j-1], f.Mul(master[j], xi))
		}
		master[0] = f.Mul(master[0], xi)
	}

	coeffs := make([][]byte, k)
	for j := range coeffs {
		coeffs[j] = f.Zero()
	}
	q := make([][]byte, k)
	for i, xi := range xs {
		// q = master / (x - xi) by synthetic division.
		q[k-1] = master[k]
		for j := k - 1; j >= 1; j-- {
			q[j-1] = f.Add(master[j], f.Mul(xi, q[j]))
		}
		denom := f.Evaluate(q, xi)
		scale, err := f.Div(ys[i], denom)
		if err != nil {
			return nil, fmt.Errorf("gf2e: degenerate interpolation basis: %w", err)
		}
		for j := 0; j < k; j++ {
			coeffs[j] = f.Add(coeffs[j], f.Mul(scale, q[j]))
		}
	}
	return coeffs, nil
}

// Evaluate returns sum coeffs[j] * x^j.
func (f *Field) Evaluate(coeffs [][]byte, x []byte) []byte {
	acc := f.Zero()
	for j := len(coeffs) - 1; j >= 0; j-- {
		acc = f.Add(f.Mul(acc, x), coeffs[j])
	}
	return acc
}
