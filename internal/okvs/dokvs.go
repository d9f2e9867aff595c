package okvs

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/dokvs"
)

// Params configures the dokvs backend.
type Params struct {
	// Type is the DOKVS variant.
	Type dokvs.Type
	// L is the value length in bits. Zero infers it from the values,
	// which must then all have the same length.
	L int
	// Capacity is the minimum table capacity. Tables always hold at
	// least the number of pairs encoded.
	Capacity int
	// PRF names the keyed PRF (see crypto.PRFByName).
	PRF string
	// ExpectedBinSize tunes the cluster variants; zero keeps the default.
	ExpectedBinSize int
	// Parallel fans encoding out over GOMAXPROCS goroutines.
	Parallel bool
	// FreeMode skips doubly oblivious randomization: unconstrained
	// positions are left zero.
	FreeMode bool
	// Retries is the number of extra attempts under fresh hash keys
	// after dokvs.ErrCannotEncode.
	Retries int
	// Random is the entropy source for hash keys and random elements;
	// nil uses the system CSPRNG.
	Random io.Reader
	// Logger receives encode diagnostics.
	Logger hclog.Logger
}

func (p Params) options() []dokvs.Option {
	opts := []dokvs.Option{
		dokvs.WithParallel(p.Parallel),
		dokvs.WithRandom(p.Random),
		dokvs.WithLogger(p.Logger),
		dokvs.WithPRF(p.PRF),
	}
	if p.ExpectedBinSize > 0 {
		opts = append(opts, dokvs.WithExpectedBinSize(p.ExpectedBinSize))
	}
	return opts
}

// DokvsEncoder encodes pairs into a self-describing DOKVS blob under
// freshly drawn hash keys.
type DokvsEncoder struct {
	params Params
}

// NewDokvsEncoder creates a dokvs backend encoder.
func NewDokvsEncoder(params Params) *DokvsEncoder {
	return &DokvsEncoder{params: params}
}

// valueBits returns the value length of pairs in bits.
func (e *DokvsEncoder) valueBits(pairs map[string][]byte) (int, error) {
	if e.params.L > 0 {
		return e.params.L, nil
	}
	size := -1
	for k, v := range pairs {
		if size >= 0 && len(v) != size {
			return 0, fmt.Errorf("%w: value for key %s has %d bytes, others have %d", dokvs.ErrInvalidInput, k, len(v), size)
		}
		size = len(v)
	}
	if size <= 0 {
		return 0, fmt.Errorf("%w: cannot infer value length from %d pairs", dokvs.ErrInvalidInput, len(pairs))
	}
	return 8 * size, nil
}

// Encode implements Encoder.
func (e *DokvsEncoder) Encode(pairs map[string][]byte) ([]byte, error) {
	if pairs == nil {
		return nil, fmt.Errorf("pairs map cannot be nil")
	}
	l, err := e.valueBits(pairs)
	if err != nil {
		return nil, err
	}
	n := max(e.params.Capacity, len(pairs), 1)

	var (
		keys    [][]byte
		storage [][]byte
	)
	for attempt := 0; ; attempt++ {
		keys, err = dokvs.NewKeys(e.params.Type, e.params.Random)
		if err != nil {
			return nil, fmt.Errorf("failed to draw hash keys: %w", err)
		}
		d, err := dokvs.New(e.params.Type, n, l, keys, e.params.options()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s table: %w", e.params.Type, err)
		}
		storage, err = d.Encode(pairs, !e.params.FreeMode)
		if err == nil {
			break
		}
		if !errors.Is(err, dokvs.ErrCannotEncode) || attempt >= e.params.Retries {
			return nil, fmt.Errorf("failed to encode %d pairs: %w", len(pairs), err)
		}
		if e.params.Logger != nil {
			e.params.Logger.Debug("encode failed, retrying with fresh keys", "type", e.params.Type, "attempt", attempt+1)
		}
	}

	blob := &dokvs.Blob{
		Type:            e.params.Type,
		N:               n,
		L:               l,
		Keys:            keys,
		Storage:         storage,
		PRF:             e.params.PRF,
		ExpectedBinSize: e.params.ExpectedBinSize,
	}
	return blob.Marshal(), nil
}

// DokvsTable is an opened DOKVS blob.
type DokvsTable struct {
	dokvs   dokvs.Dokvs
	storage [][]byte
}

// OpenDokvsTable parses and validates a blob produced by DokvsEncoder.
func OpenDokvsTable(blob []byte) (*DokvsTable, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("blob cannot be empty")
	}
	b, err := dokvs.UnmarshalBlob(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dokvs blob: %w", err)
	}
	d, err := b.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open dokvs blob: %w", err)
	}
	return &DokvsTable{dokvs: d, storage: b.Storage}, nil
}

// Dokvs returns the table's DOKVS instance.
func (t *DokvsTable) Dokvs() dokvs.Dokvs { return t.dokvs }

// Get implements Table. A DOKVS has no membership test: keys that were
// never encoded decode to unrelated values.
func (t *DokvsTable) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	return t.dokvs.Decode(t.storage, key)
}

// DokvsDecoder implements Decoder by opening the blob on every call.
// Use OpenDokvsTable for repeated lookups.
type DokvsDecoder struct{}

// Decode implements Decoder.
func (DokvsDecoder) Decode(blob []byte, key string) ([]byte, error) {
	t, err := OpenDokvsTable(blob)
	if err != nil {
		return nil, err
	}
	return t.Get(key)
}
