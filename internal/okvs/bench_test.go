package okvs

import (
	"fmt"
	"testing"

	"github.com/mundrapranay/silhouette-db/internal/dokvs"
)

func benchPairs(size int) map[string][]byte {
	pairs := make(map[string][]byte, size)
	for i := 0; i < size; i++ {
		pairs[fmt.Sprintf("key%d", i)] = float64ToBytes(float64(i))
	}
	return pairs
}

func benchEncoders() map[string]Encoder {
	return map[string]Encoder{
		"KVS":         NewKVSEncoder(),
		"H3BlazeGct":  NewDokvsEncoder(Params{Type: dokvs.H3BlazeGct}),
		"H2TwoCore":   NewDokvsEncoder(Params{Type: dokvs.H2TwoCoreGct}),
		"DistinctGbf": NewDokvsEncoder(Params{Type: dokvs.DistinctGbf}),
	}
}

// BenchmarkKVS_vs_DOKVS_Encoding compares the plain baseline with the
// oblivious backend.
func BenchmarkKVS_vs_DOKVS_Encoding(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		pairs := benchPairs(size)
		for name, encoder := range benchEncoders() {
			b.Run(fmt.Sprintf("%s_Size_%d", name, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := encoder.Encode(pairs); err != nil {
						b.Fatalf("%s Encode failed: %v", name, err)
					}
				}
			})
		}
	}
}

func BenchmarkKVS_vs_DOKVS_Decoding(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		pairs := benchPairs(size)
		for name, encoder := range benchEncoders() {
			blob, err := encoder.Encode(pairs)
			if err != nil {
				b.Fatalf("%s Encode failed: %v", name, err)
			}
			backend := BackendDokvs
			if name == "KVS" {
				backend = BackendKVS
			}
			table, err := OpenTable(backend, blob)
			if err != nil {
				b.Fatalf("%s open failed: %v", name, err)
			}

			b.Run(fmt.Sprintf("%s_SingleKey_Size_%d", name, size), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := table.Get("key0"); err != nil {
						b.Fatalf("%s Get failed: %v", name, err)
					}
				}
			})
		}
	}
}
