package dokvs

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

// gbfWidth returns the table size of a garbled Bloom filter holding n keys.
func gbfWidth(n int) int {
	return byteAlign(int(math.Ceil(float64(n) * statsBits / math.Ln2)))
}

// gbf is a garbled Bloom filter with statsBits hash functions. The
// distinct variant places every key at exactly statsBits slots; the plain
// variant drops colliding hash outputs.
type gbf struct {
	typ      Type
	n        int
	m        int
	bitL     int
	byteL    int
	distinct bool
	prf      crypto.PRF
	random   *crypto.Random
	parallel bool
	logger   hclog.Logger
}

func newGbf(typ Type, n, bitL int, key []byte, s settings, random *crypto.Random) (*gbf, error) {
	factory, err := crypto.PRFByName(s.prfName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	prf, err := factory(key, 4*statsBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &gbf{
		typ:      typ,
		n:        n,
		m:        gbfWidth(n),
		bitL:     bitL,
		byteL:    (bitL + 7) / 8,
		distinct: typ == DistinctGbf,
		prf:      prf,
		random:   random,
		parallel: s.parallel,
		logger:   s.logger,
	}, nil
}

func (g *gbf) Type() Type { return g.typ }
func (g *gbf) N() int { return g.n }
func (g *gbf) M() int { return g.m }
func (g *gbf) L() int { return g.bitL }
func (g *gbf) ByteL() int { return g.byteL }
func (g *gbf) Rate() float64 { return float64(g.n) / float64(g.m) }

func (g *gbf) positions(key string) []int {
	raw := rawWords(g.prf.Bytes([]byte(key)), statsBits)
	if g.distinct {
		return distinctPositions(raw, g.m)
	}
	return residues(raw, g.m)
}

func (g *gbf) Encode(pairs map[string][]byte, doublyEncode bool) ([][]byte, error) {
	keys, err := checkPairs(pairs, g.n, g.bitL, g.byteL)
	if err != nil {
		return nil, err
	}
	fill := filler{random: g.random, doubly: doublyEncode, bitL: g.bitL, byteL: g.byteL}

	positions := make([][]int, len(keys))
	forEach(g.parallel, len(keys), func(i int) {
		positions[i] = g.positions(keys[i])
	})

	storage := make([][]byte, g.m)
	for i, key := range keys {
		acc := append([]byte(nil), pairs[key]...)
		reserved := -1
		for _, p := range positions[i] {
			if storage[p] == nil {
				if reserved < 0 {
					reserved = p
					continue
				}
				storage[p] = fill.next()
			}
			xorInto(acc, storage[p])
		}
		if reserved < 0 {
			return nil, fmt.Errorf("%w: every position of key %q is already taken", ErrCannotEncode, key)
		}
		storage[reserved] = acc
	}

	empty := 0
	for p := range storage {
		if storage[p] == nil {
			storage[p] = fill.next()
			empty++
		}
	}
	g.logger.Debug("encoded garbled bloom filter", "type", g.typ, "keys", len(keys), "m", g.m, "untouched", empty)
	return storage, nil
}

func (g *gbf) Decode(storage [][]byte, key string) ([]byte, error) {
	if err := checkStorage(storage, g.m); err != nil {
		return nil, err
	}
	acc := make([]byte, g.byteL)
	for _, p := range g.positions(key) {
		xorInto(acc, storage[p])
	}
	return acc, nil
}
