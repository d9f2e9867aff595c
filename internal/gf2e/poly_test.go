package gf2e

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpolate_PassesThroughPoints(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	f, err := New(40)
	require.NoError(t, err)

	for _, k := range []int{1, 2, 7, 33} {
		xs := make([][]byte, k)
		ys := make([][]byte, k)
		seen := map[string]bool{}
		for i := 0; i < k; i++ {
			for {
				xs[i] = randomElement(t, f, r)
				if !seen[string(xs[i])] {
					seen[string(xs[i])] = true
					break
				}
			}
			ys[i] = randomElement(t, f, r)
		}

		coeffs, err := f.Interpolate(xs, ys)
		require.NoError(t, err)
		require.Len(t, coeffs, k)
		for i := range xs {
			require.Equal(t, ys[i], f.Evaluate(coeffs, xs[i]), "k=%d point %d", k, i)
		}
	}
}

func TestInterpolate_RecoversKnownPolynomial(t *testing.T) {
	f, err := New(8)
	require.NoError(t, err)
	// p(x) = 3 + 5x + 7x^2
	want := [][]byte{{3}, {5}, {7}}
	xs := [][]byte{{1}, {2}, {9}}
	ys := make([][]byte, len(xs))
	for i, x := range xs {
		ys[i] = f.Evaluate(want, x)
	}
	got, err := f.Interpolate(xs, ys)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestInterpolate_Errors(t *testing.T) {
	f, err := New(8)
	require.NoError(t, err)

	_, err = f.Interpolate([][]byte{{1}, {1}}, [][]byte{{2}, {3}})
	require.ErrorIs(t, err, ErrDuplicatePoint)

	_, err = f.Interpolate([][]byte{{1}}, [][]byte{{2}, {3}})
	require.Error(t, err)

	coeffs, err := f.Interpolate(nil, nil)
	require.NoError(t, err)
	require.Empty(t, coeffs)
}

func TestEvaluate_ZeroPolynomial(t *testing.T) {
	f, err := New(16)
	require.NoError(t, err)
	require.Equal(t, f.Zero(), f.Evaluate(nil, []byte{0x12, 0x34}))
}
