package dokvs

import (
	"fmt"
	"io"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
	"github.com/mundrapranay/silhouette-db/internal/peel"
)

// MaxN is the largest capacity New and M accept.
const MaxN = 1 << 30

var gctVariants = map[Type]gctParams{
	H2TwoCoreGct:            {arity: 2, epsilon: 0.4, finder: peel.TwoCoreFinder{}},
	H2SingletonGct:          {arity: 2, epsilon: 0.4, finder: peel.SingletonFinder{}},
	H2BlazeGct:              {arity: 2, epsilon: 0.2, finder: peel.TwoCoreFinder{}},
	H3SingletonGct:          {arity: 3, epsilon: 0.3, finder: peel.SingletonFinder{}},
	H3BlazeGct:              {arity: 3, epsilon: 0.25, finder: peel.TwoCoreFinder{}},
	H2ClusterBlazeGct:       {arity: 2, epsilon: 0.2, finder: peel.TwoCoreFinder{}},
	H3ClusterBlazeGct:       {arity: 3, epsilon: 0.25, finder: peel.TwoCoreFinder{}},
	H2SparseClusterBlazeGct: {arity: 2, epsilon: 0.2, finder: peel.TwoCoreFinder{}},
	H3SparseClusterBlazeGct: {arity: 3, epsilon: 0.25, finder: peel.TwoCoreFinder{}},
}

func isCluster(t Type) bool {
	switch t {
	case H2ClusterBlazeGct, H3ClusterBlazeGct, H2SparseClusterBlazeGct, H3SparseClusterBlazeGct:
		return true
	}
	return false
}

// HashKeyNum returns how many PRF keys New expects for t.
func HashKeyNum(t Type) int {
	if isCluster(t) || t == MegaBin {
		return 2
	}
	return 1
}

// IsBinary reports whether decoding t is an XOR of storage elements, as
// opposed to a field evaluation.
func IsBinary(t Type) bool {
	_, known := typeNames[t]
	return known && t != MegaBin
}

// IsSparse reports whether instances of t implement SparseDokvs.
func IsSparse(t Type) bool {
	switch t {
	case H2TwoCoreGct, H2SingletonGct, H2BlazeGct, H3SingletonGct, H3BlazeGct,
		H2SparseClusterBlazeGct, H3SparseClusterBlazeGct:
		return true
	}
	return false
}

// M returns the storage length of a t instance with capacity n built
// with opts.
func M(t Type, n int, opts ...Option) (int, error) {
	if n <= 0 || n > MaxN {
		return 0, fmt.Errorf("%w: capacity must be in [1, %d], got %d", ErrInvalidConfig, MaxN, n)
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	switch {
	case t == Gbf || t == DistinctGbf:
		return gbfWidth(n), nil
	case t == MegaBin:
		binNum, binSize := megaBinShape(n)
		return binNum * binSize, nil
	case isCluster(t):
		if s.expectedBinSize <= 0 {
			return 0, fmt.Errorf("%w: expected bin size must be positive, got %d", ErrInvalidConfig, s.expectedBinSize)
		}
		binNum := clusterBinNum(n, s.expectedBinSize)
		binN := maxBinSize(n, binNum)
		return binNum * (gctVariants[t].sparseWidth(binN) + denseWidth(binN)), nil
	}
	if p, ok := gctVariants[t]; ok {
		return p.sparseWidth(n) + denseWidth(n), nil
	}
	return 0, fmt.Errorf("%w: unknown dokvs type %d", ErrInvalidConfig, int(t))
}

// NewKeys draws HashKeyNum(t) fresh PRF keys from r, or from the system
// CSPRNG when r is nil.
func NewKeys(t Type, r io.Reader) ([][]byte, error) {
	keys := make([][]byte, HashKeyNum(t))
	for i := range keys {
		key, err := crypto.NewKey(r)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}
	return keys, nil
}

// New builds a t instance holding up to n values of l bits, with its
// positions derived from keys. The instance is immutable and safe for
// concurrent use.
func New(t Type, n, l int, keys [][]byte, opts ...Option) (Dokvs, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("%w: unknown dokvs type %d", ErrInvalidConfig, int(t))
	}
	if n <= 0 || n > MaxN {
		return nil, fmt.Errorf("%w: capacity must be in [1, %d], got %d", ErrInvalidConfig, MaxN, n)
	}
	if l <= 0 {
		return nil, fmt.Errorf("%w: value length must be positive, got %d bits", ErrInvalidConfig, l)
	}
	if len(keys) != HashKeyNum(t) {
		return nil, fmt.Errorf("%w: %s needs %d hash keys, got %d", ErrInvalidConfig, t, HashKeyNum(t), len(keys))
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	random := crypto.NewRandom(s.reader)

	var (
		d   Dokvs
		err error
	)
	switch {
	case t == Gbf || t == DistinctGbf:
		d, err = newGbf(t, n, l, keys[0], s, random)
	case t == MegaBin:
		d, err = newMegaBin(n, l, keys[0], keys[1], s, random)
	case isCluster(t):
		var c *cluster
		c, err = newCluster(t, gctVariants[t], n, l, keys[0], keys[1], s, random)
		if err == nil {
			if c.sparseLayout {
				d = sparseCluster{c}
			} else {
				d = c
			}
		}
	default:
		d, err = newGct(t, gctVariants[t], n, l, keys[0], s, random)
	}
	if err != nil {
		return nil, err
	}

	if m := d.M(); m <= n || m%8 != 0 {
		return nil, fmt.Errorf("%w: %s sizing gave m=%d for n=%d", ErrInvalidConfig, t, m, n)
	}
	s.logger.Debug("created dokvs", "type", t, "n", n, "l", l, "m", d.M())
	return d, nil
}
