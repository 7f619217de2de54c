package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"denim/internal/domain"
)

// Link is the connection pair shared with one peer.
type Link struct {
	Role    domain.PeerRole
	Data    net.Conn
	Control net.Conn
	// Remote is the peer's host, without port.
	Remote string

	closeOnce sync.Once
	closeErr  error
}

// Close closes both connections. It is safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = errors.Join(l.Data.Close(), l.Control.Close())
	})
	return l.closeErr
}

// Listener accepts links on a data port and the control port above it.
type Listener struct {
	data    net.Listener
	control net.Listener
	log     *zap.Logger
}

// Listen binds host:port for data and host:port+1 for control.
func Listen(ctx context.Context, host string, port int, log *zap.Logger) (*Listener, error) {
	if err := checkPort(port); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	var lc net.ListenConfig
	data, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: listen data: %w", domain.ErrTransport, err)
	}
	control, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port+1)))
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("%w: listen control: %w", domain.ErrTransport, err)
	}
	log.Info("listening", zap.Stringer("data", data.Addr()), zap.Stringer("control", control.Addr()))
	return &Listener{data: data, control: control, log: log}, nil
}

// Addr is the data listener's address.
func (ln *Listener) Addr() net.Addr { return ln.data.Addr() }

// Close stops both listeners.
func (ln *Listener) Close() error {
	return errors.Join(ln.data.Close(), ln.control.Close())
}

// Accept waits for a data connection, then for a control connection from
// the same host. The accepting side becomes the Responder.
func (ln *Listener) Accept(ctx context.Context) (*Link, error) {
	data, err := accept(ctx, ln.data)
	if err != nil {
		return nil, err
	}
	remote := hostOf(data.RemoteAddr())
	for {
		control, err := accept(ctx, ln.control)
		if err != nil {
			_ = data.Close()
			return nil, err
		}
		if host := hostOf(control.RemoteAddr()); host != remote {
			ln.log.Warn("control connection from unexpected host",
				zap.String("want", remote), zap.String("got", host))
			_ = control.Close()
			continue
		}
		ln.log.Info("peer connected", zap.String("peer", remote), zap.Stringer("role", domain.Responder))
		return &Link{Role: domain.Responder, Data: data, Control: control, Remote: remote}, nil
	}
}

// Dial connects to the peer's data port, then its control port. The dialing
// side becomes the Initiator.
func Dial(ctx context.Context, host string, port int, log *zap.Logger) (*Link, error) {
	if err := checkPort(port); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	var d net.Dialer
	data, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("%w: dial data: %w", domain.ErrTransport, err)
	}
	control, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port+1)))
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("%w: dial control: %w", domain.ErrTransport, err)
	}
	remote := hostOf(data.RemoteAddr())
	log.Info("peer connected", zap.String("peer", remote), zap.Stringer("role", domain.Initiator))
	return &Link{Role: domain.Initiator, Data: data, Control: control, Remote: remote}, nil
}

// Establish waits for an inbound link on ln and, when peer is non-empty,
// dials peer (host:port) once at the same time. The first complete link wins
// and fixes the role; a late loser is closed. A failed dial leaves the
// listener waiting.
//
// Only one side should be given a peer. If both sides dial each other at
// the same moment, each may keep the link it dialed and close the other, so
// both end up as Initiator on a closed pair; the first key exchange then
// fails with domain.ErrPeerClosed and the session must be restarted.
func Establish(ctx context.Context, ln *Listener, peer string, log *zap.Logger) (*Link, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		winner *Link
	)
	claim := func(l *Link) {
		mu.Lock()
		defer mu.Unlock()
		if winner != nil {
			_ = l.Close()
			return
		}
		winner = l
		cancel()
	}

	var (
		g                  errgroup.Group
		acceptErr, dialErr error
	)
	g.Go(func() error {
		l, err := ln.Accept(ctx)
		if err != nil {
			acceptErr = err
			return nil
		}
		claim(l)
		return nil
	})
	if peer != "" {
		g.Go(func() error {
			host, portStr, err := net.SplitHostPort(peer)
			if err != nil {
				dialErr = fmt.Errorf("peer address %q: %w", peer, err)
				return nil
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				dialErr = fmt.Errorf("peer port %q: %w", portStr, err)
				return nil
			}
			l, err := Dial(ctx, host, port, log)
			if err != nil {
				dialErr = err
				log.Info("dial failed; waiting for the peer to connect", zap.String("peer", peer), zap.Error(err))
				return nil
			}
			claim(l)
			return nil
		})
	}
	_ = g.Wait()

	if winner != nil {
		return winner, nil
	}
	if err := ctx.Err(); err != nil && acceptErr == nil {
		acceptErr = err
	}
	return nil, errors.Join(acceptErr, dialErr)
}

func accept(ctx context.Context, l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: accept: %w", domain.ErrTransport, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
	}

	dl, ok := l.(interface{ SetDeadline(time.Time) error })
	if !ok {
		return nil, ctx.Err()
	}
	_ = dl.SetDeadline(time.Unix(1, 0))
	if r := <-ch; r.conn != nil {
		_ = r.conn.Close()
	}
	_ = dl.SetDeadline(time.Time{})
	return nil, ctx.Err()
}

func checkPort(port int) error {
	if port < 1 || port > 65534 {
		return fmt.Errorf("port %d out of range; the control port %d must also be valid", port, port+1)
	}
	return nil
}

func hostOf(a net.Addr) string {
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	return host
}
