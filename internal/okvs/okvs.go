// Package okvs provides the table encoders the server stores: an
// oblivious backend built on the DOKVS engine and a plain key-value
// baseline for comparison.
package okvs

import (
	"fmt"
)

// Encoder encodes key-value pairs into an opaque table blob.
type Encoder interface {
	// Encode takes a map of key-value pairs and returns the encoded table.
	Encode(pairs map[string][]byte) ([]byte, error)
}

// Decoder recovers single values from an encoded table blob.
type Decoder interface {
	// Decode returns the value stored under key in blob.
	Decode(blob []byte, key string) ([]byte, error)
}

// Table is a decoded blob held in memory for repeated lookups.
type Table interface {
	// Get returns the value stored under key.
	Get(key string) ([]byte, error)
}

// Backend names.
const (
	BackendDokvs = "dokvs"
	BackendKVS   = "kvs"
)

// NewEncoder returns the encoder for backend. Params are ignored by the
// kvs backend.
func NewEncoder(backend string, params Params) (Encoder, error) {
	switch backend {
	case "", BackendDokvs:
		return NewDokvsEncoder(params), nil
	case BackendKVS:
		return NewKVSEncoder(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// OpenTable parses blob as a table of the given backend.
func OpenTable(backend string, blob []byte) (Table, error) {
	switch backend {
	case "", BackendDokvs:
		t, err := OpenDokvsTable(blob)
		if err != nil {
			return nil, err
		}
		return t, nil
	case BackendKVS:
		t, err := NewKVSDecoder(blob)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
