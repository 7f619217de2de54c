package crypto

import (
	"crypto/rand"
	"io"
	"math/big"
)

// randInt returns a uniform value in [0, max). A nil reader means crypto/rand.
func randInt(r io.Reader, max *big.Int) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	return rand.Int(r, max)
}

// RandomBytes fills a fresh n-byte slice from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
