package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// MAC returns HMAC-SHA256(key, msg).
func MAC(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

// VerifyMAC recomputes the tag for msg and compares it in constant time.
func VerifyMAC(key, msg, tag []byte) bool {
	return hmac.Equal(MAC(key, msg), tag)
}
