// Package dokvs implements doubly oblivious key-value stores over
// GF(2^l): an encoding of a key-value map into m fixed-length elements
// from which any key's value is recovered by combining a few
// key-derived positions.
//
// Variants are garbled cuckoo tables over 2 or 3 hash functions (GCT),
// their bin-sharded cluster forms, garbled Bloom filters (GBF), and the
// polynomial MegaBin construction. Every instance is immutable once
// built: all per-encode state is allocated inside Encode, so one
// instance may serve concurrent Encode and Decode calls.
package dokvs

import (
	"fmt"
	"strings"
)

// Type names a DOKVS variant.
type Type int

const (
	H2TwoCoreGct Type = iota
	H2SingletonGct
	H2BlazeGct
	H3SingletonGct
	H3BlazeGct
	H2ClusterBlazeGct
	H3ClusterBlazeGct
	H2SparseClusterBlazeGct
	H3SparseClusterBlazeGct
	Gbf
	DistinctGbf
	MegaBin
)

var typeNames = map[Type]string{
	H2TwoCoreGct:            "H2_TWO_CORE_GCT",
	H2SingletonGct:          "H2_SINGLETON_GCT",
	H2BlazeGct:              "H2_BLAZE_GCT",
	H3SingletonGct:          "H3_SINGLETON_GCT",
	H3BlazeGct:              "H3_BLAZE_GCT",
	H2ClusterBlazeGct:       "H2_CLUSTER_BLAZE_GCT",
	H3ClusterBlazeGct:       "H3_CLUSTER_BLAZE_GCT",
	H2SparseClusterBlazeGct: "H2_SPARSE_CLUSTER_BLAZE_GCT",
	H3SparseClusterBlazeGct: "H3_SPARSE_CLUSTER_BLAZE_GCT",
	Gbf:                     "GBF",
	DistinctGbf:             "DISTINCT_GBF",
	MegaBin:                 "MEGA_BIN",
}

// Types lists every variant in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := H2TwoCoreGct; t <= MegaBin; t++ {
		out = append(out, t)
	}
	return out
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType is the inverse of Type.String. Matching ignores case and
// accepts '-' in place of '_'.
func ParseType(s string) (Type, error) {
	want := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for t, name := range typeNames {
		if name == want {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown dokvs type %q", ErrInvalidConfig, s)
}

// Dokvs encodes key-value maps into storage and decodes single keys.
type Dokvs interface {
	// Type returns the variant tag.
	Type() Type
	// N returns the capacity: the largest map Encode accepts.
	N() int
	// M returns the storage length in elements.
	M() int
	// L returns the value length in bits.
	L() int
	// ByteL returns the value length in bytes.
	ByteL() int
	// Rate returns N()/M().
	Rate() float64
	// Encode returns storage of M() elements from which every key in
	// pairs decodes to its value. With doublyEncode the storage is
	// indistinguishable from uniform; without it unconstrained positions
	// are zero.
	Encode(pairs map[string][]byte, doublyEncode bool) ([][]byte, error)
	// Decode recovers the value of key from storage. Individual
	// elements are not validated; a malformed element yields a
	// meaningless value, never a panic. See ValidateStorage.
	Decode(storage [][]byte, key string) ([]byte, error)
}

// SparseDokvs is implemented by variants whose positions split into a
// sparse part, [0, SparsePositionRange()), and a dense part stored right
// after it, [SparsePositionRange(), SparsePositionRange()+DensePositionRange()).
type SparseDokvs interface {
	Dokvs
	// SparsePositions returns the key's sparse positions.
	SparsePositions(key string) []int
	// DensePositions returns the key's dense positions, relative to the
	// start of the dense part.
	DensePositions(key string) []int
	SparsePositionRange() int
	DensePositionRange() int
	// MaxSparsePositionNum bounds len(SparsePositions(key)).
	MaxSparsePositionNum() int
}
