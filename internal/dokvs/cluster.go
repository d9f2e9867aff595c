package dokvs

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

// clusterBinNum returns the number of bins for n keys at the given
// expected occupancy.
func clusterBinNum(n, expectedBinSize int) int {
	return max(1, int(math.Ceil(float64(n)/float64(expectedBinSize))))
}

// cluster shards keys over binNum bins with a keyed bin hash and encodes
// each bin with the same blaze GCT sized for binN keys. The naive layout
// stores whole bin tables back to back; the sparse layout stores every
// bin's sparse part first and every bin's dense part after them.
type cluster struct {
	typ          Type
	n            int
	bitL         int
	byteL        int
	binNum       int
	binN         int
	sparseLayout bool
	binPRF       crypto.PRF
	inner        *gct
	parallel     bool
	logger       hclog.Logger
}

func newCluster(typ Type, p gctParams, n, bitL int, binKey, innerKey []byte, s settings, random *crypto.Random) (*cluster, error) {
	if s.expectedBinSize <= 0 {
		return nil, fmt.Errorf("%w: expected bin size must be positive, got %d", ErrInvalidConfig, s.expectedBinSize)
	}
	factory, err := crypto.PRFByName(s.prfName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	binPRF, err := factory(binKey, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	binNum := clusterBinNum(n, s.expectedBinSize)
	binN := maxBinSize(n, binNum)

	innerSettings := s
	innerSettings.parallel = false
	inner, err := newGct(typ, p, binN, bitL, innerKey, innerSettings, random)
	if err != nil {
		return nil, err
	}
	return &cluster{
		typ:          typ,
		n:            n,
		bitL:         bitL,
		byteL:        (bitL + 7) / 8,
		binNum:       binNum,
		binN:         binN,
		sparseLayout: typ == H2SparseClusterBlazeGct || typ == H3SparseClusterBlazeGct,
		binPRF:       binPRF,
		inner:        inner,
		parallel:     s.parallel,
		logger:       s.logger,
	}, nil
}

func (c *cluster) Type() Type { return c.typ }
func (c *cluster) N() int { return c.n }
func (c *cluster) M() int { return c.binNum * c.inner.M() }
func (c *cluster) L() int { return c.bitL }
func (c *cluster) ByteL() int { return c.byteL }
func (c *cluster) Rate() float64 { return float64(c.n) / float64(c.M()) }

// BinNum returns the number of bins.
func (c *cluster) BinNum() int { return c.binNum }

func (c *cluster) binIndex(key string) int {
	return c.binPRF.Int([]byte(key), c.binNum)
}

// offsets returns where bin b's sparse and dense parts start in storage.
func (c *cluster) offsets(b int) (int, int) {
	sparseM, denseM := c.inner.sparseM, c.inner.denseM
	if c.sparseLayout {
		return b * sparseM, c.binNum*sparseM + b*denseM
	}
	return b * (sparseM + denseM), b*(sparseM+denseM) + sparseM
}

func (c *cluster) Encode(pairs map[string][]byte, doublyEncode bool) ([][]byte, error) {
	bins, err := c.encodeBins(pairs, doublyEncode)
	if err != nil {
		return nil, err
	}
	return c.join(bins), nil
}

// encodeBins encodes every bin on its own and returns the per-bin
// storages in bin order.
func (c *cluster) encodeBins(pairs map[string][]byte, doublyEncode bool) ([][][]byte, error) {
	keys, err := checkPairs(pairs, c.n, c.bitL, c.byteL)
	if err != nil {
		return nil, err
	}
	binOf := make([]int, len(keys))
	forEach(c.parallel, len(keys), func(i int) {
		binOf[i] = c.binIndex(keys[i])
	})
	binPairs := make([]map[string][]byte, c.binNum)
	for b := range binPairs {
		binPairs[b] = make(map[string][]byte)
	}
	for i, k := range keys {
		b := binOf[i]
		if len(binPairs[b]) == c.binN {
			return nil, fmt.Errorf("%w: bin %d holds more than %d keys", ErrCannotEncode, b, c.binN)
		}
		binPairs[b][k] = pairs[k]
	}

	bins := make([][][]byte, c.binNum)
	errs := make([]error, c.binNum)
	forEach(c.parallel, c.binNum, func(b int) {
		bins[b], errs[b] = c.inner.Encode(binPairs[b], doublyEncode)
	})
	for b, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to encode bin %d: %w", b, err)
		}
	}
	c.logger.Debug("encoded clustered table", "type", c.typ, "keys", len(keys), "bins", c.binNum, "bin_capacity", c.binN)
	return bins, nil
}

// join lays the per-bin storages out in the instance's layout.
func (c *cluster) join(bins [][][]byte) [][]byte {
	sparseM := c.inner.sparseM
	storage := make([][]byte, c.M())
	for b, bin := range bins {
		sparseAt, denseAt := c.offsets(b)
		copy(storage[sparseAt:], bin[:sparseM])
		copy(storage[denseAt:], bin[sparseM:])
	}
	return storage
}

func (c *cluster) Decode(storage [][]byte, key string) ([]byte, error) {
	if err := checkStorage(storage, c.M()); err != nil {
		return nil, err
	}
	sparseAt, denseAt := c.offsets(c.binIndex(key))
	return c.inner.decodeAt(storage, key, sparseAt, denseAt), nil
}

// sparseCluster is the sparse layout, which keeps the global sparse and
// dense position ranges meaningful.
type sparseCluster struct {
	*cluster
}

func (c sparseCluster) SparsePositions(key string) []int {
	sparseAt, _ := c.offsets(c.binIndex(key))
	local := c.inner.SparsePositions(key)
	for i := range local {
		local[i] += sparseAt
	}
	return local
}

func (c sparseCluster) DensePositions(key string) []int {
	b := c.binIndex(key)
	local := c.inner.DensePositions(key)
	for i := range local {
		local[i] += b * c.inner.denseM
	}
	return local
}

func (c sparseCluster) SparsePositionRange() int { return c.binNum * c.inner.sparseM }
func (c sparseCluster) DensePositionRange() int { return c.binNum * c.inner.denseM }
func (c sparseCluster) MaxSparsePositionNum() int { return c.inner.arity }
