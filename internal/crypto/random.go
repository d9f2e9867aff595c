package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20"
)

var systemReader io.Reader = rand.Reader

// Random draws fixed-length field elements from an entropy source.
// A failing source is treated like a failing system CSPRNG: it panics.
type Random struct {
	mu     sync.Mutex
	reader io.Reader
}

// NewRandom wraps r. A nil reader uses the system CSPRNG.
func NewRandom(r io.Reader) *Random {
	if r == nil {
		r = systemReader
	}
	return &Random{reader: r}
}

// Element returns a uniformly random element of byteL bytes whose
// value fits in bitL bits (the leading byteL*8-bitL bits are zero).
func (r *Random) Element(byteL, bitL int) []byte {
	b := make([]byte, byteL)
	r.Fill(b)
	if rem := bitL % 8; rem != 0 && byteL > 0 {
		b[0] &= byte(1<<rem) - 1
	}
	return b
}

// Fill overwrites b with random bytes.
func (r *Random) Fill(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.ReadFull(r.reader, b); err != nil {
		panic("crypto: randomness source failed: " + err.Error())
	}
}

// seededReader is the ChaCha20 keystream under a fixed seed.
type seededReader struct {
	mu     sync.Mutex
	cipher *chacha20.Cipher
}

// NewSeededReader returns a deterministic reader producing the ChaCha20
// keystream for seed. It is meant for reproducible tests and benchmarks,
// never for production encodings.
func NewSeededReader(seed []byte) (io.Reader, error) {
	if len(seed) != chacha20.KeySize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", chacha20.KeySize, len(seed))
	}
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(seed, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to create chacha20 stream: %w", err)
	}
	return &seededReader{cipher: c}, nil
}

func (s *seededReader) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(p)
	s.cipher.XORKeyStream(p, p)
	return len(p), nil
}
