package dokvs

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
	"github.com/mundrapranay/silhouette-db/internal/peel"
)

// gctParams fixes the shape of one garbled cuckoo table variant.
type gctParams struct {
	arity   int
	epsilon float64
	finder  peel.Finder
}

// sparseWidth returns L, the number of cuckoo-graph vertices.
func (p gctParams) sparseWidth(n int) int {
	if p.arity == 2 {
		return byteAlign(int(math.Ceil((2 + p.epsilon) * float64(n))))
	}
	return byteAlign(int(math.Ceil((1 + p.epsilon) * float64(n))))
}

// denseWidth returns R, the number of dense columns.
func denseWidth(n int) int {
	return byteAlign(ceilLog2(n) + statsBits)
}

// gct is a garbled cuckoo table: each key touches arity distinct sparse
// positions in [0, sparseM) plus a pseudorandom subset of the denseM
// positions that follow them.
type gct struct {
	typ      Type
	n        int
	bitL     int
	byteL    int
	sparseM  int
	denseM   int
	arity    int
	finder   peel.Finder
	prf      crypto.PRF
	random   *crypto.Random
	parallel bool
	logger   hclog.Logger
}

func newGct(typ Type, p gctParams, n, bitL int, key []byte, s settings, random *crypto.Random) (*gct, error) {
	sparseM := p.sparseWidth(n)
	denseM := denseWidth(n)
	factory, err := crypto.PRFByName(s.prfName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	prf, err := factory(key, 4*p.arity+denseM/8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &gct{
		typ:      typ,
		n:        n,
		bitL:     bitL,
		byteL:    (bitL + 7) / 8,
		sparseM:  sparseM,
		denseM:   denseM,
		arity:    p.arity,
		finder:   p.finder,
		prf:      prf,
		random:   random,
		parallel: s.parallel,
		logger:   s.logger,
	}, nil
}

func (g *gct) Type() Type { return g.typ }
func (g *gct) N() int { return g.n }
func (g *gct) M() int { return g.sparseM + g.denseM }
func (g *gct) L() int { return g.bitL }
func (g *gct) ByteL() int { return g.byteL }
func (g *gct) Rate() float64 { return float64(g.n) / float64(g.M()) }
func (g *gct) SparsePositionRange() int { return g.sparseM }
func (g *gct) DensePositionRange() int { return g.denseM }
func (g *gct) MaxSparsePositionNum() int { return g.arity }

// positions derives the key's sparse positions and its dense bit vector.
func (g *gct) positions(key string) ([]int, []byte) {
	out := g.prf.Bytes([]byte(key))
	return distinctPositions(rawWords(out, g.arity), g.sparseM), out[4*g.arity:]
}

func (g *gct) SparsePositions(key string) []int {
	sparse, _ := g.positions(key)
	return sparse
}

func (g *gct) DensePositions(key string) []int {
	_, dense := g.positions(key)
	return setBits(dense, g.denseM)
}

// BinaryDensePositions returns the key's dense positions as a big-endian
// bit vector of DensePositionRange() bits.
func (g *gct) BinaryDensePositions(key string) []byte {
	_, dense := g.positions(key)
	return dense
}

func (g *gct) Decode(storage [][]byte, key string) ([]byte, error) {
	if err := checkStorage(storage, g.M()); err != nil {
		return nil, err
	}
	return g.decodeAt(storage, key, 0, g.sparseM), nil
}

// decodeAt decodes key from a table whose sparse part starts at
// sparseOffset and whose dense part starts at denseOffset.
func (g *gct) decodeAt(storage [][]byte, key string, sparseOffset, denseOffset int) []byte {
	sparse, dense := g.positions(key)
	acc := make([]byte, g.byteL)
	for _, v := range sparse {
		xorInto(acc, storage[sparseOffset+v])
	}
	set := denseSet(dense, g.denseM)
	for j, ok := set.NextSet(0); ok; j, ok = set.NextSet(j + 1) {
		xorInto(acc, storage[denseOffset+int(j)])
	}
	return acc
}

// gctEncoding is the scratch state of one Encode call. Nothing in it
// outlives the call.
type gctEncoding struct {
	keys    []string
	values  [][]byte
	sparse  [][]int
	dense   []*bitset.BitSet
	storage [][]byte
	fill    filler
}

func (g *gct) newEncoding(keys []string, pairs map[string][]byte, doublyEncode bool) *gctEncoding {
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = pairs[k]
	}
	return &gctEncoding{
		keys:    keys,
		values:  values,
		sparse:  make([][]int, len(keys)),
		dense:   make([]*bitset.BitSet, len(keys)),
		storage: make([][]byte, g.M()),
		fill:    filler{random: g.random, doubly: doublyEncode, bitL: g.bitL, byteL: g.byteL},
	}
}

func (g *gct) Encode(pairs map[string][]byte, doublyEncode bool) ([][]byte, error) {
	keys, err := checkPairs(pairs, g.n, g.bitL, g.byteL)
	if err != nil {
		return nil, err
	}
	enc := g.newEncoding(keys, pairs, doublyEncode)

	forEach(g.parallel, len(keys), func(i int) {
		sparse, dense := g.positions(keys[i])
		enc.sparse[i], enc.dense[i] = sparse, denseSet(dense, g.denseM)
	})
	graph := &peel.Hypergraph{NumVertices: g.sparseM, Edges: enc.sparse}
	result := g.finder.FindCore(graph)

	if err := g.solveCore(enc, graph, result.Core); err != nil {
		return nil, err
	}
	if err := g.backfill(enc, result.Removed); err != nil {
		return nil, err
	}
	for v := 0; v < g.sparseM; v++ {
		if enc.storage[v] == nil {
			enc.storage[v] = enc.fill.next()
		}
	}
	return enc.storage, nil
}
