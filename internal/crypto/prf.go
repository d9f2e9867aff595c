package crypto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// KeyLength is the byte length of PRF key material.
const KeyLength = 32

// PRF is a keyed pseudorandom function with a fixed output length.
// Implementations must be deterministic for a given key and input and
// safe for concurrent use.
type PRF interface {
	// OutputLength returns the number of bytes produced by Bytes.
	OutputLength() int
	// Bytes derives OutputLength() pseudorandom bytes from input.
	Bytes(input []byte) []byte
	// Int derives an integer in [0, bound) from input.
	Int(input []byte, bound int) int
}

// PRFFactory builds a PRF from key material and an output length.
type PRFFactory func(key []byte, outputLength int) (PRF, error)

// PRF names accepted by PRFByName.
const (
	PRFBlake3 = "blake3"
	PRFCShake = "cshake"
)

// PRFByName returns the factory registered under name. An empty name
// selects BLAKE3.
func PRFByName(name string) (PRFFactory, error) {
	switch name {
	case "", PRFBlake3:
		return NewBlake3PRF, nil
	case PRFCShake:
		return NewCShakePRF, nil
	default:
		return nil, fmt.Errorf("unknown prf %q (must be %q or %q)", name, PRFBlake3, PRFCShake)
	}
}

// NewKey draws fresh PRF key material from r. A nil reader uses the
// system CSPRNG.
func NewKey(r io.Reader) ([]byte, error) {
	if r == nil {
		r = systemReader
	}
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to draw prf key: %w", err)
	}
	return key, nil
}

// blake3PRF evaluates BLAKE3 in keyed mode and reads its extendable
// output.
type blake3PRF struct {
	key       []byte
	outputLen int
}

// NewBlake3PRF returns a PRF backed by keyed BLAKE3.
func NewBlake3PRF(key []byte, outputLength int) (PRF, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("prf key must be %d bytes, got %d", KeyLength, len(key))
	}
	if outputLength <= 0 {
		return nil, fmt.Errorf("prf output length must be positive, got %d", outputLength)
	}
	// Fail early on a key blake3 would reject.
	if _, err := blake3.NewKeyed(key); err != nil {
		return nil, fmt.Errorf("failed to key blake3: %w", err)
	}
	return &blake3PRF{key: append([]byte(nil), key...), outputLen: outputLength}, nil
}

func (p *blake3PRF) OutputLength() int { return p.outputLen }

func (p *blake3PRF) Bytes(input []byte) []byte {
	return p.derive(0x00, input, p.outputLen)
}

func (p *blake3PRF) Int(input []byte, bound int) int {
	return boundedInt(p.derive(0x01, input, 8), bound)
}

func (p *blake3PRF) derive(domain byte, input []byte, n int) []byte {
	hasher, err := blake3.NewKeyed(p.key)
	if err != nil {
		panic("crypto: blake3 keyed initialization failed: " + err.Error())
	}
	hasher.Write([]byte{domain})
	hasher.Write(input)
	out := make([]byte, n)
	if _, err := io.ReadFull(hasher.Digest(), out); err != nil {
		panic("crypto: blake3 output read failed: " + err.Error())
	}
	return out
}

// cshakePRF evaluates cSHAKE256 with the key as customization string.
type cshakePRF struct {
	key       []byte
	outputLen int
}

var cshakeFunctionName = []byte("silhouette-db prf")

// NewCShakePRF returns a PRF backed by cSHAKE256.
func NewCShakePRF(key []byte, outputLength int) (PRF, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("prf key must be %d bytes, got %d", KeyLength, len(key))
	}
	if outputLength <= 0 {
		return nil, fmt.Errorf("prf output length must be positive, got %d", outputLength)
	}
	return &cshakePRF{key: append([]byte(nil), key...), outputLen: outputLength}, nil
}

func (p *cshakePRF) OutputLength() int { return p.outputLen }

func (p *cshakePRF) Bytes(input []byte) []byte {
	return p.derive(0x00, input, p.outputLen)
}

func (p *cshakePRF) Int(input []byte, bound int) int {
	return boundedInt(p.derive(0x01, input, 8), bound)
}

func (p *cshakePRF) derive(domain byte, input []byte, n int) []byte {
	h := sha3.NewCShake256(cshakeFunctionName, p.key)
	h.Write([]byte{domain})
	h.Write(input)
	out := make([]byte, n)
	h.Read(out)
	return out
}

// boundedInt reduces 8 pseudorandom bytes into [0, bound).
func boundedInt(b []byte, bound int) int {
	if bound <= 0 {
		panic(fmt.Sprintf("crypto: prf bound must be positive, got %d", bound))
	}
	return int(binary.BigEndian.Uint64(b) % uint64(bound))
}
