// Package envelope seals chat messages for the data connection.
//
// An envelope carries hex(IV || AES-256-CBC ciphertext) and an HMAC-SHA256
// tag computed over the plaintext. With the signing tier enabled it also
// carries an ECDSA P-521 signature and the password-wrapped one-time key that
// made it. Because the key travels with the message, the signature shows the
// message passed through someone who knew the password and nothing more;
// Forge demonstrates that.
//
// Decode fails closed. Integrity failures (bad encoding, padding or tag)
// wrap domain.ErrIntegrity; signature failures wrap domain.ErrAuthenticity.
package envelope
