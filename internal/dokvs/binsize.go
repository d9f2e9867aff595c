package dokvs

import "math"

// maxBinSize returns the smallest k such that, throwing n balls into
// binNum bins uniformly at random, the chance that any bin receives more
// than k balls is at most 2^-statsBits (union bound over bins).
func maxBinSize(n, binNum int) int {
	if binNum <= 1 || n == 0 {
		return n
	}
	p := 1 / float64(binNum)
	logP, logQ := math.Log(p), math.Log1p(-p)
	lgN, _ := math.Lgamma(float64(n) + 1)
	threshold := math.Ldexp(1, -statsBits) / float64(binNum)

	logPMF := func(k int) float64 {
		lk, _ := math.Lgamma(float64(k) + 1)
		lnk, _ := math.Lgamma(float64(n-k) + 1)
		return lgN - lk - lnk + float64(k)*logP + float64(n-k)*logQ
	}

	// tail holds P[X > k]; walk k down until adding P[X = k] would push
	// the tail past the threshold.
	tail := 0.0
	for k := n; k > 0; k-- {
		next := tail + math.Exp(logPMF(k))
		if next > threshold {
			return k
		}
		tail = next
	}
	return 0
}
