package dokvs

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
	"github.com/mundrapranay/silhouette-db/internal/gf2e"
)

// megaBinMinL is the smallest value length for which mapped keys collide
// with negligible probability.
const megaBinMinL = statsBits

// megaBinShape returns the bin count and per-bin polynomial size for n
// keys, with binNum*binSize a multiple of 8.
func megaBinShape(n int) (int, int) {
	binNum := 1
	if n > 2 {
		binNum = max(1, int(math.Ceil(float64(n)/math.Log(float64(n)))))
	}
	binSize := max(1, maxBinSize(n, binNum))
	for binNum*binSize%8 != 0 {
		binSize++
	}
	return binNum, binSize
}

// megaBin maps every key to a field element, buckets the mapped keys
// with a keyed hash, and stores for each bin the coefficients of a
// polynomial through that bin's (mapped key, value) points.
type megaBin struct {
	n        int
	bitL     int
	byteL    int
	binNum   int
	binSize  int
	field    *gf2e.Field
	mapPRF   crypto.PRF
	binPRF   crypto.PRF
	random   *crypto.Random
	parallel bool
	logger   hclog.Logger
}

func newMegaBin(n, bitL int, mapKey, binKey []byte, s settings, random *crypto.Random) (*megaBin, error) {
	if bitL < megaBinMinL {
		return nil, fmt.Errorf("%w: %s needs l >= %d, got %d", ErrInvalidConfig, MegaBin, megaBinMinL, bitL)
	}
	field, err := gf2e.New(bitL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	factory, err := crypto.PRFByName(s.prfName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	mapPRF, err := factory(mapKey, field.ByteL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	binPRF, err := factory(binKey, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	binNum, binSize := megaBinShape(n)
	return &megaBin{
		n:        n,
		bitL:     bitL,
		byteL:    field.ByteL(),
		binNum:   binNum,
		binSize:  binSize,
		field:    field,
		mapPRF:   mapPRF,
		binPRF:   binPRF,
		random:   random,
		parallel: s.parallel,
		logger:   s.logger,
	}, nil
}

func (mb *megaBin) Type() Type { return MegaBin }
func (mb *megaBin) N() int { return mb.n }
func (mb *megaBin) M() int { return mb.binNum * mb.binSize }
func (mb *megaBin) L() int { return mb.bitL }
func (mb *megaBin) ByteL() int { return mb.byteL }
func (mb *megaBin) Rate() float64 { return float64(mb.n) / float64(mb.M()) }

// mapKey returns the field element standing in for key and its bin.
func (mb *megaBin) mapKey(key string) ([]byte, int) {
	x := mb.mapPRF.Bytes([]byte(key))
	if rem := mb.bitL % 8; rem != 0 {
		x[0] &= byte(1<<rem) - 1
	}
	return x, mb.binPRF.Int(x, mb.binNum)
}

type megaBinBin struct {
	xs, ys [][]byte
}

func (mb *megaBin) Encode(pairs map[string][]byte, doublyEncode bool) ([][]byte, error) {
	keys, err := checkPairs(pairs, mb.n, mb.bitL, mb.byteL)
	if err != nil {
		return nil, err
	}
	mapped := make([][]byte, len(keys))
	binOf := make([]int, len(keys))
	forEach(mb.parallel, len(keys), func(i int) {
		mapped[i], binOf[i] = mb.mapKey(keys[i])
	})

	bins := make([]megaBinBin, mb.binNum)
	for i, k := range keys {
		b := &bins[binOf[i]]
		if len(b.xs) == mb.binSize {
			return nil, fmt.Errorf("%w: bin %d holds more than %d keys", ErrCannotEncode, binOf[i], mb.binSize)
		}
		b.xs = append(b.xs, mapped[i])
		b.ys = append(b.ys, pairs[k])
	}

	storage := make([][]byte, mb.M())
	errs := make([]error, mb.binNum)
	forEach(mb.parallel, mb.binNum, func(b int) {
		errs[b] = mb.encodeBin(bins[b], doublyEncode, storage[b*mb.binSize:(b+1)*mb.binSize])
	})
	for b, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to encode bin %d: %w", b, err)
		}
	}
	mb.logger.Debug("encoded mega bin table", "keys", len(keys), "bins", mb.binNum, "bin_size", mb.binSize)
	return storage, nil
}

// encodeBin writes the coefficients of one bin's polynomial into out.
// Doubly oblivious bins are padded with random points up to a full
// degree binSize-1 polynomial; otherwise the high coefficients are zero.
func (mb *megaBin) encodeBin(bin megaBinBin, doublyEncode bool, out [][]byte) error {
	if doublyEncode && len(bin.xs) == 0 {
		for j := range out {
			out[j] = mb.random.Element(mb.byteL, mb.bitL)
		}
		return nil
	}
	xs, ys := bin.xs, bin.ys
	if doublyEncode {
		xs = append([][]byte(nil), xs...)
		ys = append([][]byte(nil), ys...)
		for len(xs) < mb.binSize {
			x := mb.random.Element(mb.byteL, mb.bitL)
			if containsElement(xs, x) {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, mb.random.Element(mb.byteL, mb.bitL))
		}
	}
	coeffs, err := mb.field.Interpolate(xs, ys)
	if err != nil {
		if errors.Is(err, gf2e.ErrDuplicatePoint) {
			return fmt.Errorf("%w: two keys map to the same field element", ErrCannotEncode)
		}
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	for j := range out {
		if j < len(coeffs) {
			out[j] = coeffs[j]
		} else {
			out[j] = mb.field.Zero()
		}
	}
	return nil
}

func containsElement(set [][]byte, x []byte) bool {
	for _, s := range set {
		if bytes.Equal(s, x) {
			return true
		}
	}
	return false
}

func (mb *megaBin) Decode(storage [][]byte, key string) ([]byte, error) {
	if err := checkStorage(storage, mb.M()); err != nil {
		return nil, err
	}
	x, b := mb.mapKey(key)
	return mb.field.Evaluate(storage[b*mb.binSize:(b+1)*mb.binSize], x), nil
}
