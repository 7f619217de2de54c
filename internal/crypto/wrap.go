package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeyBytes   = 32
	SaltBytes  = 16
	NonceBytes = chacha20poly1305.NonceSize

	wrapVersion    byte = 1
	wrapHeaderSize      = 1 + 4 + 4 + 1 + SaltBytes + NonceBytes

	maxWrapTime      = 16
	maxWrapMemoryKiB = 256 * 1024
)

// ErrWrappedSecret is a wrapped blob that is malformed or does not open
// under the given password.
var ErrWrappedSecret = errors.New("cannot unwrap secret")

// WrapParams are the Argon2id cost parameters used to derive a wrapping key.
type WrapParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultWrapParams is Argon2id with 19 MiB, one pass, one lane.
var DefaultWrapParams = WrapParams{Time: 1, MemoryKiB: 19 * 1024, Threads: 1}

func (p WrapParams) validate() error {
	if p.Time == 0 || p.Time > maxWrapTime || p.MemoryKiB < 8 || p.MemoryKiB > maxWrapMemoryKiB || p.Threads == 0 {
		return fmt.Errorf("argon2 parameters out of range: %+v", p)
	}
	return nil
}

// DeriveKEK stretches password into a key-encryption key.
func DeriveKEK(password string, salt []byte, p WrapParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, KeyBytes)
}

// WrapSecret seals secret under a key derived from password.
//
// Layout: version | time u32 | memory u32 | threads u8 | salt | nonce | sealed.
// The cost parameters travel with the blob so the reader needs only the password.
func WrapSecret(password string, secret []byte, p WrapParams) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	salt, err := RandomBytes(nil, SaltBytes)
	if err != nil {
		return nil, err
	}
	nonce, err := RandomBytes(nil, NonceBytes)
	if err != nil {
		return nil, err
	}
	kek := DeriveKEK(password, salt, p)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, wrapHeaderSize+len(secret)+aead.Overhead())
	out = append(out, wrapVersion)
	out = binary.BigEndian.AppendUint32(out, p.Time)
	out = binary.BigEndian.AppendUint32(out, p.MemoryKiB)
	out = append(out, p.Threads)
	out = append(out, salt...)
	out = append(out, nonce...)
	header := out[:wrapHeaderSize]
	return aead.Seal(out, nonce, secret, header), nil
}

// UnwrapSecret opens a blob produced by WrapSecret.
func UnwrapSecret(password string, blob []byte) ([]byte, error) {
	if len(blob) < wrapHeaderSize+chacha20poly1305.Overhead || blob[0] != wrapVersion {
		return nil, ErrWrappedSecret
	}
	p := WrapParams{
		Time:      binary.BigEndian.Uint32(blob[1:5]),
		MemoryKiB: binary.BigEndian.Uint32(blob[5:9]),
		Threads:   blob[9],
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrappedSecret, err)
	}
	salt := blob[10 : 10+SaltBytes]
	nonce := blob[10+SaltBytes : wrapHeaderSize]

	kek := DeriveKEK(password, salt, p)
	defer Wipe(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, blob[wrapHeaderSize:], blob[:wrapHeaderSize])
	if err != nil {
		return nil, ErrWrappedSecret
	}
	return plain, nil
}
