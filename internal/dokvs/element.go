package dokvs

import (
	"crypto/subtle"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

// statsBits is the statistical security parameter λ. Construction
// failures happen with probability about 2^-statsBits.
const statsBits = 40

// byteAlign rounds n up to a multiple of 8.
func byteAlign(n int) int {
	return (n + 7) / 8 * 8
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// validElement reports whether v is byteL bytes with no bit set above
// bitL.
func validElement(v []byte, bitL, byteL int) bool {
	if len(v) != byteL {
		return false
	}
	if rem := bitL % 8; rem != 0 {
		return v[0]>>rem == 0
	}
	return true
}

// checkPairs enforces the shape contract shared by all variants and
// returns the keys in ascending order.
func checkPairs(pairs map[string][]byte, n, bitL, byteL int) ([]string, error) {
	if len(pairs) > n {
		return nil, fmt.Errorf("%w: %d pairs exceed capacity %d", ErrInvalidInput, len(pairs), n)
	}
	keys := make([]string, 0, len(pairs))
	for k, v := range pairs {
		if !validElement(v, bitL, byteL) {
			return nil, fmt.Errorf("%w: value for key %q is not a %d-bit element", ErrInvalidInput, k, bitL)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func checkStorage(storage [][]byte, m int) error {
	if len(storage) != m {
		return fmt.Errorf("%w: storage has %d elements, want %d", ErrInvalidInput, len(storage), m)
	}
	return nil
}

// ValidateStorage checks every element of storage against d's shape.
// Decode skips this O(m) scan; call it when storage comes from an
// untrusted source or while debugging.
func ValidateStorage(d Dokvs, storage [][]byte) error {
	if err := checkStorage(storage, d.M()); err != nil {
		return err
	}
	for i, v := range storage {
		if !validElement(v, d.L(), d.ByteL()) {
			return fmt.Errorf("%w: storage element %d is not a %d-bit element", ErrInvalidInput, i, d.L())
		}
	}
	return nil
}

// filler produces the elements written into unconstrained positions:
// fresh randomness for doubly oblivious encodings, zero otherwise.
type filler struct {
	random *crypto.Random
	doubly bool
	bitL   int
	byteL  int
}

func (f filler) next() []byte {
	if f.doubly {
		return f.random.Element(f.byteL, f.bitL)
	}
	return make([]byte, f.byteL)
}

func xorInto(dst, src []byte) {
	subtle.XORBytes(dst, dst, src)
}

// forEach runs fn(i) for i in [0, n), spread over GOMAXPROCS goroutines
// when parallel is set.
func forEach(parallel bool, n int, fn func(i int)) {
	workers := runtime.GOMAXPROCS(0)
	if !parallel || n < 2 || workers < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
