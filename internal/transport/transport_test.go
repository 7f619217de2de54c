package transport_test

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"denim/internal/domain"
	"denim/internal/transport"
)

// listenPair finds a free data/control port pair on loopback.
func listenPair(t *testing.T) (*transport.Listener, int) {
	t.Helper()
	for i := 0; i < 50; i++ {
		probe, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := probe.Addr().(*net.TCPAddr).Port
		_ = probe.Close()
		if port >= 65534 {
			continue
		}
		ln, err := transport.Listen(context.Background(), "127.0.0.1", port, zaptest.NewLogger(t))
		if err == nil {
			t.Cleanup(func() { _ = ln.Close() })
			return ln, port
		}
	}
	t.Fatal("no free port pair")
	return nil, 0
}

func exchange(t *testing.T, a, b net.Conn, msg string) {
	t.Helper()
	go func() { _, _ = a.Write([]byte(msg)) }()
	buf := make([]byte, len(msg))
	_, err := io.ReadFull(b, buf)
	require.NoError(t, err)
	require.Equal(t, msg, string(buf))
}

func TestDialAccept_AssignsRoles(t *testing.T) {
	ln, port := listenPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accepted := make(chan *transport.Link, 1)
	go func() {
		l, err := ln.Accept(ctx)
		if err == nil {
			accepted <- l
		}
		close(accepted)
	}()

	ini, err := transport.Dial(ctx, "127.0.0.1", port, nil)
	require.NoError(t, err)
	defer ini.Close()
	resp, ok := <-accepted
	require.True(t, ok)
	defer resp.Close()

	require.Equal(t, domain.Initiator, ini.Role)
	require.Equal(t, domain.Responder, resp.Role)
	require.Equal(t, "127.0.0.1", ini.Remote)
	require.Equal(t, "127.0.0.1", resp.Remote)

	exchange(t, ini.Data, resp.Data, "data")
	exchange(t, resp.Control, ini.Control, "ctl")

	require.NoError(t, ini.Close())
	require.NoError(t, ini.Close())
}

func TestEstablish_AcceptOnly(t *testing.T) {
	ln, port := listenPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		if l, err := transport.Dial(ctx, "127.0.0.1", port, nil); err == nil {
			<-ctx.Done()
			_ = l.Close()
		}
	}()
	link, err := transport.Establish(ctx, ln, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer link.Close()
	require.Equal(t, domain.Responder, link.Role)
}

func TestEstablish_DialWins(t *testing.T) {
	local, _ := listenPair(t)
	remote, remotePort := listenPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		if l, err := remote.Accept(ctx); err == nil {
			<-ctx.Done()
			_ = l.Close()
		}
	}()
	peer := net.JoinHostPort("127.0.0.1", strconv.Itoa(remotePort))
	link, err := transport.Establish(ctx, local, peer, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer link.Close()
	require.Equal(t, domain.Initiator, link.Role)
}

func TestEstablish_CancelledWhileWaiting(t *testing.T) {
	ln, _ := listenPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := transport.Establish(ctx, ln, "", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListen_RejectsTopPort(t *testing.T) {
	_, err := transport.Listen(context.Background(), "127.0.0.1", 65535, nil)
	require.Error(t, err)
}
