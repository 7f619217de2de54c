// Package framing length-prefixes envelopes on the data connection.
//
// A frame is a 4-byte big-endian length followed by that many bytes of JSON.
// Each frame is handed to the writer in a single Write call.
package framing

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"denim/internal/domain"
)

const (
	headerSize = 4
	// MaxFrameSize caps the body length a reader will allocate for.
	MaxFrameSize = 16 << 20
)

// Marshal serialises env to its wire body.
func Marshal(env domain.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Unmarshal parses a wire body.
func Unmarshal(body []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %w", domain.ErrFraming, err)
	}
	return env, nil
}

// WriteFrame writes env as one frame.
func WriteFrame(w io.Writer, env domain.Envelope) error {
	body, err := Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFraming, err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit", domain.ErrFraming, len(body))
	}
	buf := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[headerSize:], body)
	if _, err := w.Write(buf); err != nil {
		return ioError("write frame", err)
	}
	return nil
}

// ReadFrame reads exactly one frame.
//
// io.EOF before the first header byte, or a reset or closed connection at
// any point, means the peer hung up and is reported as domain.ErrPeerClosed.
// A frame cut short, an oversized or empty length, or an unparsable body
// wraps domain.ErrFraming. Any other read failure wraps domain.ErrTransport.
func ReadFrame(r io.Reader) (domain.Envelope, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return domain.Envelope{}, fmt.Errorf("%w: header: %w", domain.ErrFraming, err)
		}
		return domain.Envelope{}, ioError("header", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || n > MaxFrameSize {
		return domain.Envelope{}, fmt.Errorf("%w: bad frame length %d", domain.ErrFraming, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		// ReadFull reports io.EOF when no body byte arrived.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return domain.Envelope{}, fmt.Errorf("%w: body: %w", domain.ErrFraming, io.ErrUnexpectedEOF)
		}
		return domain.Envelope{}, ioError("body", err)
	}
	return Unmarshal(body)
}

func ioError(op string, err error) error {
	if domain.IsHangup(err) {
		return fmt.Errorf("%w: %s: %w", domain.ErrPeerClosed, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
}
