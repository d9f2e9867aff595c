package okvs

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// KVSEncoder implements Encoder using plain key-value storage.
// This is a non-oblivious implementation that stores pairs as a CBOR map.
// It's faster and simpler than a DOKVS but exposes every key.
type KVSEncoder struct{}

// NewKVSEncoder creates a new simple KV store encoder
func NewKVSEncoder() *KVSEncoder {
	return &KVSEncoder{}
}

// Encode takes a map of key-value pairs and returns a CBOR-serialized blob.
// Unlike a DOKVS it works with values of any length.
func (e *KVSEncoder) Encode(pairs map[string][]byte) ([]byte, error) {
	if pairs == nil {
		return nil, fmt.Errorf("pairs map cannot be nil")
	}
	blob, err := cbor.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize KVS data: %w", err)
	}
	return blob, nil
}

// KVSDecoder implements Decoder and Table using plain key-value storage.
// It deserializes the CBOR blob once and provides O(1) lookup by key.
type KVSDecoder struct {
	pairs map[string][]byte
}

// NewKVSDecoder creates a new KVS decoder from an encoded blob.
func NewKVSDecoder(blob []byte) (*KVSDecoder, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("blob cannot be empty")
	}
	var pairs map[string][]byte
	if err := cbor.Unmarshal(blob, &pairs); err != nil {
		return nil, fmt.Errorf("failed to deserialize KVS data: %w", err)
	}
	if pairs == nil {
		pairs = make(map[string][]byte)
	}
	return &KVSDecoder{pairs: pairs}, nil
}

// Decode returns the value for key. The blob parameter is ignored (we
// use the pre-deserialized pairs); it is kept for the Decoder interface.
func (d *KVSDecoder) Decode(_ []byte, key string) ([]byte, error) {
	return d.Get(key)
}

// Get implements Table.
func (d *KVSDecoder) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	value, exists := d.pairs[key]
	if !exists {
		return nil, fmt.Errorf("key %s not found in KVS", key)
	}
	return value, nil
}

// Len returns the number of stored pairs.
func (d *KVSDecoder) Len() int { return len(d.pairs) }
