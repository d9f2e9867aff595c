package dokvs

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Blob is a self-describing encoded table: everything a reader needs to
// rebuild the instance and decode from its storage.
//
// The wire form is protobuf-compatible:
//
//	message Blob {
//	  uint32 type = 1;
//	  uint64 n = 2;
//	  uint32 l = 3;
//	  repeated bytes keys = 4;
//	  repeated bytes storage = 5;
//	  string prf = 6;
//	  uint64 expected_bin_size = 7;
//	}
type Blob struct {
	Type            Type
	N               int
	L               int
	Keys            [][]byte
	Storage         [][]byte
	PRF             string
	ExpectedBinSize int
}

const (
	blobFieldType protowire.Number = iota + 1
	blobFieldN
	blobFieldL
	blobFieldKeys
	blobFieldStorage
	blobFieldPRF
	blobFieldExpectedBinSize
)

// Marshal returns the wire form of b.
func (b *Blob) Marshal() []byte {
	var out []byte
	out = protowire.AppendTag(out, blobFieldType, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Type))
	out = protowire.AppendTag(out, blobFieldN, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.N))
	out = protowire.AppendTag(out, blobFieldL, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.L))
	for _, k := range b.Keys {
		out = protowire.AppendTag(out, blobFieldKeys, protowire.BytesType)
		out = protowire.AppendBytes(out, k)
	}
	for _, v := range b.Storage {
		out = protowire.AppendTag(out, blobFieldStorage, protowire.BytesType)
		out = protowire.AppendBytes(out, v)
	}
	if b.PRF != "" {
		out = protowire.AppendTag(out, blobFieldPRF, protowire.BytesType)
		out = protowire.AppendString(out, b.PRF)
	}
	if b.ExpectedBinSize != 0 {
		out = protowire.AppendTag(out, blobFieldExpectedBinSize, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(b.ExpectedBinSize))
	}
	return out
}

// UnmarshalBlob parses the wire form produced by Blob.Marshal. Unknown
// fields are skipped.
func UnmarshalBlob(data []byte) (*Blob, error) {
	b := &Blob{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: malformed blob tag: %v", ErrInvalidInput, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == blobFieldType || num == blobFieldN ||
			num == blobFieldL || num == blobFieldExpectedBinSize):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: malformed blob field %d: %v", ErrInvalidInput, num, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case blobFieldType:
				b.Type = Type(v)
			case blobFieldN:
				b.N = int(v)
			case blobFieldL:
				b.L = int(v)
			case blobFieldExpectedBinSize:
				b.ExpectedBinSize = int(v)
			}
		case typ == protowire.BytesType && (num == blobFieldKeys || num == blobFieldStorage || num == blobFieldPRF):
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: malformed blob field %d: %v", ErrInvalidInput, num, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case blobFieldKeys:
				b.Keys = append(b.Keys, append([]byte(nil), v...))
			case blobFieldStorage:
				b.Storage = append(b.Storage, append([]byte(nil), v...))
			case blobFieldPRF:
				b.PRF = string(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: malformed blob field %d: %v", ErrInvalidInput, num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return b, nil
}

// Open rebuilds the instance that produced b and checks the storage
// against it. opts are applied after the blob's own PRF and bin size.
func (b *Blob) Open(opts ...Option) (Dokvs, error) {
	base := []Option{WithPRF(b.PRF)}
	if b.ExpectedBinSize != 0 {
		base = append(base, WithExpectedBinSize(b.ExpectedBinSize))
	}
	d, err := New(b.Type, b.N, b.L, b.Keys, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := ValidateStorage(d, b.Storage); err != nil {
		return nil, err
	}
	return d, nil
}
