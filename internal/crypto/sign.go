package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"io"
)

// ErrSignerKey is a serialised key that is not a P-521 ECDSA private key.
var ErrSignerKey = errors.New("not a P-521 ECDSA private key")

// OneTimeSigner is a P-521 ECDSA key generated for a single message.
// Whoever holds the serialised key can sign anything with it.
type OneTimeSigner struct {
	key *ecdsa.PrivateKey
}

// NewOneTimeSigner generates a fresh key from r (crypto/rand when nil).
func NewOneTimeSigner(r io.Reader) (*OneTimeSigner, error) {
	if r == nil {
		r = rand.Reader
	}
	key, err := ecdsa.GenerateKey(elliptic.P521(), r)
	if err != nil {
		return nil, err
	}
	return &OneTimeSigner{key: key}, nil
}

// ParseOneTimeSigner decodes a PKCS#8 DER key.
func ParseOneTimeSigner(der []byte) (*OneTimeSigner, error) {
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, ErrSignerKey
	}
	key, ok := k.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P521() {
		return nil, ErrSignerKey
	}
	return &OneTimeSigner{key: key}, nil
}

// Sign returns an ASN.1 ECDSA signature over SHA-256(msg).
func (s *OneTimeSigner) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

// Verify checks sig over msg against the signer's public key.
func (s *OneTimeSigner) Verify(msg, sig []byte) bool {
	digest := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(&s.key.PublicKey, digest[:], sig)
}

// MarshalPKCS8 serialises the private key.
func (s *OneTimeSigner) MarshalPKCS8() ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(s.key)
}

// Discard clears the private scalar. The signer must not be used afterwards.
func (s *OneTimeSigner) Discard() {
	if s.key != nil && s.key.D != nil {
		WipeInt(s.key.D)
	}
	s.key = nil
}
