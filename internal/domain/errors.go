package domain

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Error kinds. Concrete errors wrap one of these together with their cause,
// so both errors.Is(err, ErrIntegrity) and errors.Is(err, io.EOF) work.
var (
	// ErrTransport covers socket dial, accept, read and write failures.
	ErrTransport = errors.New("transport error")
	// ErrHandshake means a key exchange round was aborted.
	ErrHandshake = errors.New("handshake error")
	// ErrIntegrity means an envelope failed MAC verification or decryption.
	ErrIntegrity = errors.New("integrity error")
	// ErrAuthenticity means a signing-tier envelope failed verification.
	ErrAuthenticity = errors.New("authenticity error")
	// ErrFraming means a frame could not be read or parsed.
	ErrFraming = errors.New("framing error")
)

var (
	// ErrHandshakeTimeout is a handshake step that exceeded its deadline.
	ErrHandshakeTimeout = fmt.Errorf("%w: timeout", ErrHandshake)
	// ErrPeerClosed is an orderly hang-up by the peer.
	ErrPeerClosed = fmt.Errorf("%w: peer closed the connection", ErrTransport)
	// ErrTierMismatch is an envelope whose optional fields disagree with the
	// local tier.
	ErrTierMismatch = errors.New("envelope tier does not match configuration")
	// ErrRecordNotFound is returned for an unknown history index.
	ErrRecordNotFound = errors.New("history record not found")
	// ErrLineTooLong is an operator line over the input limit. The line is
	// discarded and input continues with the next one.
	ErrLineTooLong = errors.New("input line too long")
)

// IsSessionFatal reports whether err must terminate the session.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrIntegrity) || errors.Is(err, ErrAuthenticity)
}

// IsHangup reports whether err is the peer going away: an orderly close, a
// reset, or a write to a connection the peer already closed.
func IsHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
