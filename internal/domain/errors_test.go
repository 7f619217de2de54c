package domain_test

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"denim/internal/domain"
)

func TestIsHangup(t *testing.T) {
	for _, err := range []error{
		io.EOF,
		io.ErrClosedPipe,
		net.ErrClosed,
		&net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)},
		fmt.Errorf("%w: await ack: %w", domain.ErrHandshake, syscall.EPIPE),
	} {
		require.True(t, domain.IsHangup(err), "%v", err)
	}
	for _, err := range []error{
		nil,
		io.ErrUnexpectedEOF,
		os.ErrDeadlineExceeded,
		errors.New("boom"),
	} {
		require.False(t, domain.IsHangup(err), "%v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	require.ErrorIs(t, domain.ErrPeerClosed, domain.ErrTransport)
	require.ErrorIs(t, domain.ErrHandshakeTimeout, domain.ErrHandshake)
	require.True(t, domain.IsSessionFatal(fmt.Errorf("%w: %w", domain.ErrAuthenticity, domain.ErrTierMismatch)))
	require.False(t, domain.IsSessionFatal(domain.ErrPeerClosed))
}
