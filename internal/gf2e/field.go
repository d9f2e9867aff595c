// Package gf2e implements arithmetic in GF(2^l) and polynomial
// interpolation over it. Elements are big-endian byte strings of
// ceil(l/8) bytes whose leading unused bits are zero.
//
// The modulus is the first irreducible trinomial x^l + x^k + 1 (smallest
// k), falling back to the first irreducible pentanomial
// x^l + x^a + x^b + x^c + 1 in lexicographic (a, b, c) order.
package gf2e

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
)

// MaxL is the largest extension degree New accepts.
const MaxL = 512

// ErrNotInvertible is returned when inverting zero.
var ErrNotInvertible = errors.New("gf2e: zero has no inverse")

// Field is GF(2^l) for a fixed l. A Field is immutable and safe for
// concurrent use.
type Field struct {
	l       int
	byteL   int
	modulus *big.Int
}

// New returns the field GF(2^l).
func New(l int) (*Field, error) {
	if l <= 0 {
		return nil, fmt.Errorf("gf2e: l must be positive, got %d", l)
	}
	if l > MaxL {
		return nil, fmt.Errorf("gf2e: l must be at most %d, got %d", MaxL, l)
	}
	mod := findModulus(l)
	if mod == nil {
		return nil, fmt.Errorf("gf2e: no low-weight irreducible polynomial of degree %d", l)
	}
	return &Field{l: l, byteL: (l + 7) / 8, modulus: mod}, nil
}

// L returns the extension degree.
func (f *Field) L() int { return f.l }

// ByteL returns the byte length of an element.
func (f *Field) ByteL() int { return f.byteL }

// Modulus returns a copy of the reduction polynomial, bit i being the
// coefficient of x^i.
func (f *Field) Modulus() *big.Int { return new(big.Int).Set(f.modulus) }

// Zero returns the additive identity.
func (f *Field) Zero() []byte { return make([]byte, f.byteL) }

// One returns the multiplicative identity.
func (f *Field) One() []byte {
	b := make([]byte, f.byteL)
	b[f.byteL-1] = 1
	return b
}

// IsZero reports whether a is zero.
func (f *Field) IsZero(a []byte) bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

// Valid reports whether a is a well-formed element.
func (f *Field) Valid(a []byte) bool {
	if len(a) != f.byteL {
		return false
	}
	if rem := f.l % 8; rem != 0 {
		return a[0]>>rem == 0
	}
	return true
}

// Add returns a + b. Like Mul, it reads its inputs as big-endian
// numbers, so a short input is zero-extended and only the low byteL
// bytes of a long one count.
func (f *Field) Add(a, b []byte) []byte {
	out := make([]byte, f.byteL)
	xorLow(out, a)
	xorLow(out, b)
	return out
}

// xorLow XORs the low bytes of src into the low bytes of dst.
func xorLow(dst, src []byte) {
	n := min(len(dst), len(src))
	subtle.XORBytes(dst[len(dst)-n:], dst[len(dst)-n:], src[len(src)-n:])
}

// Mul returns a * b.
func (f *Field) Mul(a, b []byte) []byte {
	return f.toBytes(f.mulPoly(new(big.Int).SetBytes(a), new(big.Int).SetBytes(b)))
}

// Square returns a * a.
func (f *Field) Square(a []byte) []byte { return f.Mul(a, a) }

// Inv returns a^-1, computed as a^(2^l - 2).
func (f *Field) Inv(a []byte) ([]byte, error) {
	if f.IsZero(a) {
		return nil, ErrNotInvertible
	}
	x := new(big.Int).SetBytes(a)
	result := big.NewInt(1)
	// 2^l - 2 = 0b11...10 with l-1 ones.
	sq := f.mulPoly(x, x)
	for i := 1; i < f.l; i++ {
		result = f.mulPoly(result, sq)
		sq = f.mulPoly(sq, sq)
	}
	return f.toBytes(result), nil
}

// Div returns a / b.
func (f *Field) Div(a, b []byte) ([]byte, error) {
	inv, err := f.Inv(b)
	if err != nil {
		return nil, err
	}
	return f.Mul(a, inv), nil
}

func (f *Field) mulPoly(a, b *big.Int) *big.Int {
	return polyMod(polyMul(a, b), f.modulus)
}

func (f *Field) toBytes(x *big.Int) []byte {
	return x.FillBytes(make([]byte, f.byteL))
}

// polyMul multiplies two GF(2)[x] polynomials.
func polyMul(a, b *big.Int) *big.Int {
	acc := new(big.Int)
	shifted := new(big.Int)
	for i := 0; i < b.BitLen(); i++ {
		if b.Bit(i) == 1 {
			shifted.Lsh(a, uint(i))
			acc.Xor(acc, shifted)
		}
	}
	return acc
}

// polyMod reduces a modulo m in GF(2)[x].
func polyMod(a, m *big.Int) *big.Int {
	r := new(big.Int).Set(a)
	mLen := m.BitLen()
	shifted := new(big.Int)
	for r.BitLen() >= mLen {
		shifted.Lsh(m, uint(r.BitLen()-mLen))
		r.Xor(r, shifted)
	}
	return r
}

// polyGCD returns gcd(a, b) in GF(2)[x].
func polyGCD(a, b *big.Int) *big.Int {
	x := new(big.Int).Set(a)
	y := new(big.Int).Set(b)
	for y.Sign() != 0 {
		x, y = y, polyMod(x, y)
	}
	return x
}

// irreducible runs Ben-Or's test: f of degree n is irreducible iff
// gcd(f, x^(2^i) - x mod f) = 1 for every 1 <= i <= n/2.
func irreducible(f *big.Int) bool {
	n := f.BitLen() - 1
	if n < 1 {
		return false
	}
	x := big.NewInt(2)
	h := new(big.Int).Set(x)
	for i := 1; i <= n/2; i++ {
		h = polyMod(polyMul(h, h), f)
		g := polyGCD(f, new(big.Int).Xor(h, x))
		if g.BitLen() != 1 {
			return false
		}
	}
	return true
}

func findModulus(l int) *big.Int {
	if l == 1 {
		return big.NewInt(0b11)
	}
	base := new(big.Int).SetBit(new(big.Int), l, 1)
	base.SetBit(base, 0, 1)
	for k := 1; k < l; k++ {
		f := new(big.Int).SetBit(base, k, 1)
		if irreducible(f) {
			return f
		}
	}
	for a := 3; a < l; a++ {
		for b := 2; b < a; b++ {
			for c := 1; c < b; c++ {
				f := new(big.Int).Set(base)
				f.SetBit(f, a, 1)
				f.SetBit(f, b, 1)
				f.SetBit(f, c, 1)
				if irreducible(f) {
					return f
				}
			}
		}
	}
	return nil
}
