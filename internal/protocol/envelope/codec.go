package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"denim/internal/crypto"
	"denim/internal/domain"
)

// ErrNoPassword is a signing-tier codec configured without a password.
var ErrNoPassword = errors.New("signing tier requires a password")

// Codec seals plaintext into envelopes and opens them again.
//
// A Codec holds no per-session state and is safe for concurrent use.
type Codec struct {
	tier     domain.Tier
	password string
	wrap     crypto.WrapParams
	rand     io.Reader
}

// Option customises a Codec.
type Option func(*Codec)

// WithWrapParams sets the Argon2id cost used to wrap one-time signing keys.
func WithWrapParams(p crypto.WrapParams) Option {
	return func(c *Codec) { c.wrap = p }
}

// WithRand sets the source of IVs; nil means crypto/rand.
func WithRand(r io.Reader) Option {
	return func(c *Codec) { c.rand = r }
}

// New returns a Codec for tier. password wraps the one-time signing key and
// must be non-empty for domain.TierSigned.
func New(tier domain.Tier, password string, opts ...Option) (*Codec, error) {
	if tier == domain.TierSigned && password == "" {
		return nil, ErrNoPassword
	}
	c := &Codec{tier: tier, password: password, wrap: crypto.DefaultWrapParams}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Tier reports the configured tier.
func (c *Codec) Tier() domain.Tier { return c.tier }

// Encode encrypts plaintext under key and tags the plaintext.
//
// Steps:
//  1. AES-256-CBC with a fresh IV; the blob is hex(IV || ciphertext).
//  2. HMAC-SHA256 over the plaintext, hex encoded.
//  3. Signing tier only: sign the plaintext with a fresh P-521 key, wrap the
//     key under the password, embed both and discard the key.
func (c *Codec) Encode(plaintext []byte, key *domain.SessionKey) (domain.Envelope, error) {
	iv, ct, err := crypto.EncryptCBC(c.rand, key[:], plaintext)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("encrypt: %w", err)
	}
	blob := make([]byte, 0, len(iv)+len(ct))
	blob = append(append(blob, iv...), ct...)

	env := domain.Envelope{
		Ciphertext: hex.EncodeToString(blob),
		MAC:        hex.EncodeToString(crypto.MAC(key[:], plaintext)),
	}
	if c.tier != domain.TierSigned {
		return env, nil
	}
	sig, wrapped, err := c.sign(plaintext)
	if err != nil {
		return domain.Envelope{}, err
	}
	env.Signature = hex.EncodeToString(sig)
	env.SigningKey = hex.EncodeToString(wrapped)
	return env, nil
}

func (c *Codec) sign(plaintext []byte) (sig, wrapped []byte, err error) {
	signer, err := crypto.NewOneTimeSigner(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key: %w", err)
	}
	defer signer.Discard()

	sig, err = signer.Sign(plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}
	der, err := signer.MarshalPKCS8()
	if err != nil {
		return nil, nil, fmt.Errorf("marshal signing key: %w", err)
	}
	defer crypto.Wipe(der)
	wrapped, err = crypto.WrapSecret(c.password, der, c.wrap)
	if err != nil {
		return nil, nil, fmt.Errorf("wrap signing key: %w", err)
	}
	return sig, wrapped, nil
}

// Decode verifies and decrypts env under key. It never returns partial
// plaintext: any integrity failure wraps domain.ErrIntegrity and any
// signature failure wraps domain.ErrAuthenticity.
func (c *Codec) Decode(env domain.Envelope, key *domain.SessionKey) ([]byte, error) {
	blob, err := decodeHex(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %w", domain.ErrIntegrity, err)
	}
	tag, err := decodeHex(env.MAC)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %w", domain.ErrIntegrity, err)
	}
	if len(blob) < crypto.IVSize {
		return nil, fmt.Errorf("%w: ciphertext too short", domain.ErrIntegrity)
	}
	plaintext, err := crypto.DecryptCBC(key[:], blob[:crypto.IVSize], blob[crypto.IVSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %w", domain.ErrIntegrity, err)
	}
	if !crypto.VerifyMAC(key[:], plaintext, tag) {
		crypto.Wipe(plaintext)
		return nil, fmt.Errorf("%w: mac mismatch", domain.ErrIntegrity)
	}

	switch {
	case c.tier == domain.TierSigned:
		if err := c.verify(env, plaintext); err != nil {
			crypto.Wipe(plaintext)
			return nil, err
		}
	case env.Signed():
		crypto.Wipe(plaintext)
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticity, domain.ErrTierMismatch)
	}
	return plaintext, nil
}

func (c *Codec) verify(env domain.Envelope, plaintext []byte) error {
	signer, err := c.openSigner(env)
	if err != nil {
		return err
	}
	defer signer.Discard()

	sig, err := decodeHex(env.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature: %w", domain.ErrAuthenticity, err)
	}
	if !signer.Verify(plaintext, sig) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrAuthenticity)
	}
	return nil
}

func (c *Codec) openSigner(env domain.Envelope) (*crypto.OneTimeSigner, error) {
	if env.Signature == "" || env.SigningKey == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticity, domain.ErrTierMismatch)
	}
	wrapped, err := decodeHex(env.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("%w: signing key: %w", domain.ErrAuthenticity, err)
	}
	der, err := crypto.UnwrapSecret(c.password, wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticity, err)
	}
	defer crypto.Wipe(der)
	signer, err := crypto.ParseOneTimeSigner(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticity, err)
	}
	return signer, nil
}

// Forge re-signs text with the signing key embedded in env and returns an
// envelope whose signature verifies for text. Anyone holding the password can
// do this, which is what keeps a signed envelope deniable. Ciphertext and MAC
// are carried over unchanged.
func (c *Codec) Forge(env domain.Envelope, text []byte) (domain.Envelope, error) {
	signer, err := c.openSigner(env)
	if err != nil {
		return domain.Envelope{}, err
	}
	defer signer.Discard()

	sig, err := signer.Sign(text)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("sign: %w", err)
	}
	env.Signature = hex.EncodeToString(sig)
	return env, nil
}

// VerifySignature checks only the signing-tier fields of env against text.
func (c *Codec) VerifySignature(env domain.Envelope, text []byte) error {
	return c.verify(env, text)
}

var _ domain.EnvelopeCodec = (*Codec)(nil)
