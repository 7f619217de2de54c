// Package crypto exposes the primitives denim builds its protocols from.
//
// Contents
//
//   - MODP group arithmetic with fixed-width encoding and element validation
//     (Group, MODP1536)
//   - AES-256-CBC with PKCS#7 padding (EncryptCBC, DecryptCBC)
//   - HMAC-SHA256 tagging with constant-time verification (MAC, VerifyMAC)
//   - Password wrapping with Argon2id and ChaCha20-Poly1305 (WrapSecret,
//     UnwrapSecret)
//   - One-time P-521 ECDSA signers (OneTimeSigner)
//   - Best-effort memory wiping for byte slices and big integers (Wipe, WipeInt)
//   - Short fingerprints of key material for logging (Fingerprint)
//
// # Notes
//
// Functions that need randomness accept an io.Reader and fall back to
// crypto/rand when it is nil, so tests can pin their inputs.
package crypto
