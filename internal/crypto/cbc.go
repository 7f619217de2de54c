package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrCiphertextSize is a ciphertext that is empty or not block aligned.
	ErrCiphertextSize = errors.New("ciphertext is not a positive multiple of the block size")
	// ErrPadding is a PKCS#7 padding check failure.
	ErrPadding = errors.New("invalid padding")
)

// IVSize is the AES-CBC initialisation vector length.
const IVSize = aes.BlockSize

// EncryptCBC encrypts plaintext under a 32-byte key with AES-256-CBC and
// PKCS#7 padding, using a fresh random IV read from r.
func EncryptCBC(r io.Reader, key, plaintext []byte) (iv, ciphertext []byte, err error) {
	block, err := newAES256(key)
	if err != nil {
		return nil, nil, err
	}
	iv, err = RandomBytes(r, IVSize)
	if err != nil {
		return nil, nil, fmt.Errorf("iv: %w", err)
	}
	ciphertext = pkcs7Pad(plaintext, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)
	return iv, ciphertext, nil
}

// DecryptCBC reverses EncryptCBC.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newAES256(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("iv is %d bytes, want %d", len(iv), IVSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextSize
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		Wipe(out)
		return nil, err
	}
	return plain, nil
}

func newAES256(key []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-256 key is %d bytes", len(key))
	}
	return aes.NewCipher(key)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, ErrPadding
	}
	good := 1
	for _, c := range b[len(b)-n:] {
		good &= subtle.ConstantTimeByteEq(c, byte(n))
	}
	if good != 1 {
		return nil, ErrPadding
	}
	return b[:len(b)-n], nil
}
