package server

import (
	"encoding/binary"
	"fmt"
	"math"

	apiv1 "github.com/mundrapranay/silhouette-db/api/v1"
)

// float64ToBytes converts float64 to 8-byte little-endian bytes
func float64ToBytes(f float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	return b
}

// bytesToFloat64 converts 8-byte little-endian bytes to float64
func bytesToFloat64(b []byte) float64 {
	if len(b) < 8 {
		return 0.0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))
}

// testPairs returns n vertex pairs whose value is 1.5*i.
func testPairs(n int) []apiv1.KeyValuePair {
	pairs := make([]apiv1.KeyValuePair, n)
	for i := range pairs {
		pairs[i] = apiv1.KeyValuePair{Key: fmt.Sprintf("vertex-%d", i), Value: float64ToBytes(float64(i) * 1.5)}
	}
	return pairs
}
