package tdh

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"denim/internal/crypto"
	"denim/internal/domain"
	"denim/internal/util/memzero"
)

const sessionKeyInfo = "denim/3dh/session-key"

// Secrets holds S1, S2 and S3, each at the group's fixed width.
type Secrets [3][]byte

// InitiatorSecrets computes S1 = Y^a, S2 = B^x, S3 = Y^x.
func InitiatorSecrets(grp *crypto.Group, a, x, B, Y *big.Int) Secrets {
	return Secrets{
		encodeSecret(grp, Y, a),
		encodeSecret(grp, B, x),
		encodeSecret(grp, Y, x),
	}
}

// ResponderSecrets computes S1 = A^y, S2 = X^b, S3 = X^y.
func ResponderSecrets(grp *crypto.Group, b, y, A, X *big.Int) Secrets {
	return Secrets{
		encodeSecret(grp, A, y),
		encodeSecret(grp, X, b),
		encodeSecret(grp, X, y),
	}
}

func encodeSecret(grp *crypto.Group, base, k *big.Int) []byte {
	s := grp.Exp(base, k)
	defer crypto.WipeInt(s)
	return grp.Encode(s)
}

// Wipe clears all three secrets.
func (s Secrets) Wipe() {
	memzero.ZeroAll(s[0], s[1], s[2])
}

// DeriveSessionKey hashes S1 || S2 || S3 with SHA-512 and expands the digest
// with HKDF-SHA256 into a session key.
func DeriveSessionKey(s Secrets) (domain.SessionKey, error) {
	h := sha512.New()
	for _, part := range s {
		h.Write(part)
	}
	ikm := h.Sum(nil)
	defer memzero.Zero(ikm)

	var key domain.SessionKey
	kdf := hkdf.New(sha256.New, ikm, nil, []byte(sessionKeyInfo))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: kdf: %w", domain.ErrHandshake, err)
	}
	return key, nil
}
