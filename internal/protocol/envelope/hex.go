package envelope

import (
	"encoding/hex"
	"errors"
)

var errNonCanonicalHex = errors.New("non-canonical hex")

// decodeHex accepts only the lowercase form hex.EncodeToString produces, so
// every distinct field text maps to distinct bytes.
func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(b) != s {
		return nil, errNonCanonicalHex
	}
	return b, nil
}
