package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short hex label for key material, safe to log.
//
// It hashes a domain-separated SHA-256 and truncates to 8 bytes, so equal
// keys on both peers show the same label without revealing the key.
func Fingerprint(key []byte) string {
	h := sha256.New()
	h.Write([]byte("denim/fingerprint"))
	h.Write(key)
	return hex.EncodeToString(h.Sum(nil)[:8])
}
