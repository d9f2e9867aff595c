package dokvs

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

func seededReader(t *testing.T, seed byte) io.Reader {
	t.Helper()
	r, err := crypto.NewSeededReader(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return r
}

func testKeys(t *testing.T, typ Type) [][]byte {
	t.Helper()
	keys, err := NewKeys(typ, seededReader(t, 7))
	require.NoError(t, err)
	return keys
}

func randomElement(r *rand.Rand, l int) []byte {
	v := make([]byte, (l+7)/8)
	for i := range v {
		v[i] = byte(r.UintN(256))
	}
	if rem := l % 8; rem != 0 {
		v[0] &= byte(1<<rem) - 1
	}
	return v
}

func randomPairs(r *rand.Rand, count, l int) map[string][]byte {
	pairs := make(map[string][]byte, count)
	for len(pairs) < count {
		pairs[fmt.Sprintf("key-%d-%d", len(pairs), r.Uint64())] = randomElement(r, l)
	}
	return pairs
}

func newTestDokvs(t *testing.T, typ Type, n, l int, opts ...Option) Dokvs {
	t.Helper()
	d, err := New(typ, n, l, testKeys(t, typ), opts...)
	require.NoError(t, err)
	return d
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, got)
	}
	got, err := ParseType("h3-blaze-gct")
	require.NoError(t, err)
	require.Equal(t, H3BlazeGct, got)

	_, err = ParseType("cuckoo")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	keys := testKeys(t, H2BlazeGct)
	_, err := New(H2BlazeGct, 0, 8, keys)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(H2BlazeGct, 10, 0, keys)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(H2ClusterBlazeGct, 10, 8, keys)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(Type(99), 10, 8, keys)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(MegaBin, 10, 32, testKeys(t, MegaBin))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(H2BlazeGct, 10, 8, keys, WithPRF("md5"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(H2BlazeGct, 10, 8, [][]byte{{1, 2, 3}})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_RejectsOversizedTables(t *testing.T) {
	_, err := New(H3BlazeGct, 1<<44, 32, testKeys(t, H3BlazeGct))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = M(H3BlazeGct, MaxN+1)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(MegaBin, 10, 4096, testKeys(t, MegaBin))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_Shape(t *testing.T) {
	for _, typ := range Types() {
		t.Run(typ.String(), func(t *testing.T) {
			d := newTestDokvs(t, typ, 300, 64)
			require.Equal(t, typ, d.Type())
			require.Equal(t, 300, d.N())
			require.Equal(t, 64, d.L())
			require.Equal(t, 8, d.ByteL())
			require.Zero(t, d.M()%8)
			require.Greater(t, d.M(), d.N())
			require.InDelta(t, float64(d.N())/float64(d.M()), d.Rate(), 1e-12)

			m, err := M(typ, 300)
			require.NoError(t, err)
			require.Equal(t, d.M(), m)

			_, sparse := d.(SparseDokvs)
			require.Equal(t, IsSparse(typ), sparse)
			if sd, ok := d.(SparseDokvs); ok {
				require.Equal(t, d.M(), sd.SparsePositionRange()+sd.DensePositionRange())
			}
		})
	}
}

func TestGctSizing(t *testing.T) {
	for _, tc := range []struct {
		typ     Type
		n       int
		sparseM int
		denseM  int
	}{
		{H2TwoCoreGct, 100, 240, 48},
		{H2BlazeGct, 100, 224, 48},
		{H3SingletonGct, 100, 136, 48},
		{H3BlazeGct, 100, 128, 48},
		{H3BlazeGct, 1 << 20, 1310720, 64},
	} {
		d := newTestDokvs(t, tc.typ, tc.n, 8).(SparseDokvs)
		require.Equal(t, tc.sparseM, d.SparsePositionRange(), tc.typ.String())
		require.Equal(t, tc.denseM, d.DensePositionRange(), tc.typ.String())
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, typ := range Types() {
		for _, l := range []int{13, 64} {
			if typ == MegaBin && l < megaBinMinL {
				continue
			}
			for _, doubly := range []bool{true, false} {
				t.Run(fmt.Sprintf("%s/l=%d/doubly=%t", typ, l, doubly), func(t *testing.T) {
					d := newTestDokvs(t, typ, 300, l)
					pairs := randomPairs(r, 300, l)
					storage, err := d.Encode(pairs, doubly)
					require.NoError(t, err)
					require.Len(t, storage, d.M())
					require.NoError(t, ValidateStorage(d, storage))
					for k, v := range pairs {
						got, err := d.Decode(storage, k)
						require.NoError(t, err)
						require.Equal(t, v, got, k)
					}
				})
			}
		}
	}
}

func TestEncode_PartialAndEmptyMaps(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 200, 64)
		for _, count := range []int{0, 1, 17} {
			pairs := randomPairs(r, count, 64)
			storage, err := d.Encode(pairs, true)
			require.NoError(t, err, typ.String())
			for k, v := range pairs {
				got, err := d.Decode(storage, k)
				require.NoError(t, err)
				require.Equal(t, v, got, typ.String())
			}
		}
	}
}

func TestEncode_Capacity(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 50, 64)
		_, err := d.Encode(randomPairs(r, 50, 64), true)
		require.NoError(t, err, typ.String())
		_, err = d.Encode(randomPairs(r, 51, 64), true)
		require.ErrorIs(t, err, ErrInvalidInput, typ.String())
	}
}

func TestEncode_FullCapacityUnderFreshKeys(t *testing.T) {
	trials := 1000
	if testing.Short() {
		trials = 50
	}
	const n, l = 16, 64
	r := rand.New(rand.NewPCG(11, 12))
	keySource := seededReader(t, 13)
	for _, typ := range Types() {
		for trial := 0; trial < trials; trial++ {
			keys, err := NewKeys(typ, keySource)
			require.NoError(t, err)
			d, err := New(typ, n, l, keys, WithRandom(keySource))
			require.NoError(t, err)

			pairs := randomPairs(r, n, l)
			doubly := trial%2 == 0
			storage, err := d.Encode(pairs, doubly)
			require.NoError(t, err, "%s trial %d doubly=%v", typ, trial, doubly)
			for k, v := range pairs {
				got, err := d.Decode(storage, k)
				require.NoError(t, err)
				require.Equal(t, v, got, "%s trial %d key %s", typ, trial, k)
			}
		}
	}
}

func TestEncode_RejectsMalformedValues(t *testing.T) {
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 10, 44)
		_, err := d.Encode(map[string][]byte{"short": {1, 2}}, true)
		require.ErrorIs(t, err, ErrInvalidInput, typ.String())
		// 44 bits leave the top nibble of the first byte unused.
		_, err = d.Encode(map[string][]byte{"high": {0xF0, 0, 0, 0, 0, 0}}, true)
		require.ErrorIs(t, err, ErrInvalidInput, typ.String())
	}
}

func TestDecode_RejectsWrongStorageLength(t *testing.T) {
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 10, 64)
		_, err := d.Decode(make([][]byte, d.M()-1), "k")
		require.ErrorIs(t, err, ErrInvalidInput, typ.String())
	}
}

func TestDecode_MisSizedElementsDoNotPanic(t *testing.T) {
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 10, 64)
		for _, size := range []int{0, 1, 16} {
			storage := make([][]byte, d.M())
			for i := range storage {
				storage[i] = make([]byte, size)
			}
			require.NotPanics(t, func() {
				got, err := d.Decode(storage, "k")
				require.NoError(t, err)
				require.Len(t, got, d.ByteL())
			}, "%s element size %d", typ, size)
		}
	}
}

func TestValidateStorage(t *testing.T) {
	d := newTestDokvs(t, H2BlazeGct, 10, 12)
	storage, err := d.Encode(map[string][]byte{"a": {0x0F, 0xFF}}, true)
	require.NoError(t, err)
	require.NoError(t, ValidateStorage(d, storage))

	storage[3] = []byte{0x10, 0x00}
	require.ErrorIs(t, ValidateStorage(d, storage), ErrInvalidInput)
	require.ErrorIs(t, ValidateStorage(d, storage[1:]), ErrInvalidInput)
}

func TestEncode_DoublyStorageLooksRandomAndFreeStorageIsZero(t *testing.T) {
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 100, 64)
		doubly, err := d.Encode(map[string][]byte{}, true)
		require.NoError(t, err)
		free, err := d.Encode(map[string][]byte{}, false)
		require.NoError(t, err)
		zero := make([]byte, 8)
		for i := range doubly {
			require.NotEqual(t, zero, doubly[i], "%s position %d", typ, i)
			require.Equal(t, zero, free[i], "%s position %d", typ, i)
		}
	}
}

func TestEncode_FreeModeTouchesOnlyConstrainedPositions(t *testing.T) {
	d := newTestDokvs(t, H2TwoCoreGct, 100, 64)
	storage, err := d.Encode(map[string][]byte{"only": {1, 2, 3, 4, 5, 6, 7, 8}}, false)
	require.NoError(t, err)
	nonZero := 0
	for _, v := range storage {
		if !bytes.Equal(v, make([]byte, 8)) {
			nonZero++
		}
	}
	require.Equal(t, 1, nonZero)
}

func TestEncode_SeededRandomnessIsReproducible(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	for _, typ := range Types() {
		pairs := randomPairs(r, 100, 64)
		encode := func() [][]byte {
			reader, err := crypto.NewSeededReader(bytes.Repeat([]byte{9}, 32))
			require.NoError(t, err)
			d := newTestDokvs(t, typ, 100, 64, WithRandom(reader))
			storage, err := d.Encode(pairs, true)
			require.NoError(t, err)
			return storage
		}
		require.Equal(t, encode(), encode(), typ.String())
	}
}

func TestEncode_ParallelMatchesSequentialDecode(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	for _, typ := range Types() {
		d := newTestDokvs(t, typ, 500, 64, WithParallel(true), WithExpectedBinSize(64))
		pairs := randomPairs(r, 500, 64)
		storage, err := d.Encode(pairs, true)
		require.NoError(t, err, typ.String())

		sequential := newTestDokvs(t, typ, 500, 64, WithExpectedBinSize(64))
		for k, v := range pairs {
			got, err := sequential.Decode(storage, k)
			require.NoError(t, err)
			require.Equal(t, v, got, typ.String())
		}
	}
}

func TestEncode_ConcurrentCallsOnOneInstance(t *testing.T) {
	d := newTestDokvs(t, H3BlazeGct, 200, 64)
	r := rand.New(rand.NewPCG(11, 12))
	inputs := make([]map[string][]byte, 8)
	for i := range inputs {
		inputs[i] = randomPairs(r, 200, 64)
	}
	outputs := make([][][]byte, len(inputs))
	errs := make([]error, len(inputs))
	forEach(true, len(inputs), func(i int) {
		outputs[i], errs[i] = d.Encode(inputs[i], true)
	})
	for i, pairs := range inputs {
		require.NoError(t, errs[i])
		for k, v := range pairs {
			got, err := d.Decode(outputs[i], k)
			require.NoError(t, err)
			require.Equal(t, v, got)
		}
	}
}

func TestPositions_Deterministic(t *testing.T) {
	for _, typ := range Types() {
		if !IsSparse(typ) {
			continue
		}
		a := newTestDokvs(t, typ, 100, 8).(SparseDokvs)
		b := newTestDokvs(t, typ, 100, 8).(SparseDokvs)
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("k%d", i)
			sparse := a.SparsePositions(key)
			require.Equal(t, sparse, b.SparsePositions(key))
			require.Equal(t, a.DensePositions(key), b.DensePositions(key))
			require.LessOrEqual(t, len(sparse), a.MaxSparsePositionNum())
			for j, p := range sparse {
				require.GreaterOrEqual(t, p, 0)
				require.Less(t, p, a.SparsePositionRange())
				if j > 0 {
					require.Greater(t, p, sparse[j-1])
				}
			}
			for _, p := range a.DensePositions(key) {
				require.Less(t, p, a.DensePositionRange())
			}
		}
	}
}

func TestPositions_DependOnKeyMaterial(t *testing.T) {
	keysA, err := NewKeys(H3BlazeGct, seededReader(t, 1))
	require.NoError(t, err)
	keysB, err := NewKeys(H3BlazeGct, seededReader(t, 2))
	require.NoError(t, err)
	a, err := New(H3BlazeGct, 1000, 8, keysA)
	require.NoError(t, err)
	b, err := New(H3BlazeGct, 1000, 8, keysB)
	require.NoError(t, err)

	differ := 0
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", i)
		if fmt.Sprint(a.(SparseDokvs).SparsePositions(key)) != fmt.Sprint(b.(SparseDokvs).SparsePositions(key)) {
			differ++
		}
	}
	require.Greater(t, differ, 40)
}

func TestEncode_CShakePRF(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	d := newTestDokvs(t, H2BlazeGct, 100, 32, WithPRF(crypto.PRFCShake))
	pairs := randomPairs(r, 100, 32)
	storage, err := d.Encode(pairs, true)
	require.NoError(t, err)
	for k, v := range pairs {
		got, err := d.Decode(storage, k)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestConcreteFourKeyExample(t *testing.T) {
	d := newTestDokvs(t, H2TwoCoreGct, 4, 8).(SparseDokvs)
	pairs := map[string][]byte{"a": {0x01}, "b": {0x02}, "c": {0x03}, "d": {0x04}}
	storage, err := d.Encode(pairs, true)
	require.NoError(t, err)

	for k, v := range pairs {
		acc := byte(0)
		for _, p := range d.SparsePositions(k) {
			acc ^= storage[p][0]
		}
		for _, p := range d.DensePositions(k) {
			acc ^= storage[d.SparsePositionRange()+p][0]
		}
		require.Equal(t, v[0], acc, k)

		first, err := d.Decode(storage, k)
		require.NoError(t, err)
		second, err := d.Decode(storage, k)
		require.NoError(t, err)
		require.Equal(t, v, first)
		require.Equal(t, first, second)
	}
}
