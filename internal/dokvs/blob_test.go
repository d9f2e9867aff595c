package dokvs

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

func TestBlob_RoundTripAndOpen(t *testing.T) {
	r := rand.New(rand.NewPCG(51, 52))
	for _, typ := range []Type{H3BlazeGct, H2SparseClusterBlazeGct, DistinctGbf, MegaBin} {
		keys := testKeys(t, typ)
		opts := []Option{WithExpectedBinSize(32), WithPRF(crypto.PRFCShake)}
		d, err := New(typ, 120, 48, keys, opts...)
		require.NoError(t, err)
		pairs := randomPairs(r, 120, 48)
		storage, err := d.Encode(pairs, true)
		require.NoError(t, err)

		blob := &Blob{Type: typ, N: 120, L: 48, Keys: keys, Storage: storage, PRF: crypto.PRFCShake, ExpectedBinSize: 32}
		parsed, err := UnmarshalBlob(blob.Marshal())
		require.NoError(t, err)
		require.Equal(t, blob, parsed)

		opened, err := parsed.Open()
		require.NoError(t, err)
		require.Equal(t, d.M(), opened.M())
		for k, v := range pairs {
			got, err := opened.Decode(parsed.Storage, k)
			require.NoError(t, err)
			require.Equal(t, v, got, typ.String())
		}
	}
}

func TestBlob_SkipsUnknownFields(t *testing.T) {
	blob := &Blob{Type: Gbf, N: 3, L: 8, Keys: [][]byte{make([]byte, 32)}}
	data := blob.Marshal()
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))
	data = protowire.AppendTag(data, 100, protowire.VarintType)
	data = protowire.AppendVarint(data, 5)

	parsed, err := UnmarshalBlob(data)
	require.NoError(t, err)
	require.Equal(t, blob, parsed)
}

func TestBlob_Malformed(t *testing.T) {
	blob := &Blob{Type: Gbf, N: 3, L: 8, Keys: [][]byte{make([]byte, 32)}}
	data := blob.Marshal()
	_, err := UnmarshalBlob(data[:len(data)-1])
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = UnmarshalBlob([]byte{0xFF})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBlob_OpenRejectsMismatchedStorage(t *testing.T) {
	blob := &Blob{Type: H2BlazeGct, N: 10, L: 8, Keys: testKeys(t, H2BlazeGct), Storage: [][]byte{{1}}}
	_, err := blob.Open()
	require.ErrorIs(t, err, ErrInvalidInput)

	blob.Keys = nil
	_, err = blob.Open()
	require.ErrorIs(t, err, ErrInvalidConfig)
}
