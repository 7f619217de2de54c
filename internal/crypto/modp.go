package crypto

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
)

// rfc3526Prime1536 is the 1536-bit MODP prime of RFC 3526, section 2.
const rfc3526Prime1536 = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF"

var (
	// ErrGroupElement is a value outside [2, p-2] or of the wrong width.
	ErrGroupElement = errors.New("invalid group element")

	two = big.NewInt(2)
)

// Group is the multiplicative group modulo a safe prime P with generator G.
// A Group is immutable and safe for concurrent use.
type Group struct {
	p    *big.Int
	g    *big.Int
	q    *big.Int // (p-1)/2
	size int      // fixed encoding width in bytes
}

// NewGroup validates p and g and returns the group they describe.
// p must be an odd prime greater than 5; g must lie in [2, p-2].
func NewGroup(p, g *big.Int) (*Group, error) {
	if p == nil || g == nil {
		return nil, errors.New("group: nil parameter")
	}
	if p.Cmp(big.NewInt(5)) <= 0 || p.Bit(0) == 0 {
		return nil, fmt.Errorf("group: modulus %v is too small or even", p)
	}
	pm2 := new(big.Int).Sub(p, two)
	if g.Cmp(two) < 0 || g.Cmp(pm2) > 0 {
		return nil, fmt.Errorf("group: generator outside [2, p-2]")
	}
	q := new(big.Int).Rsh(p, 1)
	return &Group{
		p:    new(big.Int).Set(p),
		g:    new(big.Int).Set(g),
		q:    q,
		size: (p.BitLen() + 7) / 8,
	}, nil
}

var modp1536 = sync.OnceValue(func() *Group {
	p, ok := new(big.Int).SetString(rfc3526Prime1536, 16)
	if !ok {
		panic("crypto: bad RFC 3526 prime literal")
	}
	grp, err := NewGroup(p, two)
	if err != nil {
		panic(err)
	}
	return grp
})

// MODP1536 returns the RFC 3526 1536-bit group with generator 2.
func MODP1536() *Group { return modp1536() }

// Prime returns a copy of the group modulus.
func (grp *Group) Prime() *big.Int { return new(big.Int).Set(grp.p) }

// Generator returns a copy of the generator.
func (grp *Group) Generator() *big.Int { return new(big.Int).Set(grp.g) }

// Size is the fixed width, in bytes, of an encoded element.
func (grp *Group) Size() int { return grp.size }

// RandomScalar draws a private exponent uniformly from [2, q-1].
func (grp *Group) RandomScalar(r io.Reader) (*big.Int, error) {
	span := new(big.Int).Sub(grp.q, two) // values 0..q-3
	k, err := randInt(r, span)
	if err != nil {
		return nil, err
	}
	return k.Add(k, two), nil
}

// Public returns g^k mod p.
func (grp *Group) Public(k *big.Int) *big.Int {
	return new(big.Int).Exp(grp.g, k, grp.p)
}

// Exp returns base^k mod p. base must already be validated.
func (grp *Group) Exp(base, k *big.Int) *big.Int {
	return new(big.Int).Exp(base, k, grp.p)
}

// Validate rejects values that would confine a shared secret to a trivial
// subgroup: 0, 1, p-1 and anything outside the field.
func (grp *Group) Validate(v *big.Int) error {
	if v == nil || v.Cmp(two) < 0 || v.Cmp(new(big.Int).Sub(grp.p, two)) > 0 {
		return ErrGroupElement
	}
	return nil
}

// Encode writes v big-endian, left-padded to Size bytes.
func (grp *Group) Encode(v *big.Int) []byte {
	return v.FillBytes(make([]byte, grp.size))
}

// Decode parses a fixed-width element and validates it.
func (grp *Group) Decode(b []byte) (*big.Int, error) {
	if len(b) != grp.size {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrGroupElement, len(b), grp.size)
	}
	v := new(big.Int).SetBytes(b)
	if err := grp.Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}
