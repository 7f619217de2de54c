package session_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"denim/internal/domain"
	"denim/internal/metrics"
	"denim/internal/protocol/envelope"
	"denim/internal/protocol/framing"
	"denim/internal/protocol/tdh"
	"denim/internal/services/command"
	"denim/internal/services/message"
	"denim/internal/services/session"
	"denim/internal/store"
	"denim/internal/transport"
)

// scripted yields queued lines, then blocks until ctx is done.
type scripted struct{ lines chan string }

func script(lines ...string) *scripted {
	s := &scripted{lines: make(chan string, len(lines))}
	for _, l := range lines {
		s.lines <- l
	}
	return s
}

func (s *scripted) ReadLine(ctx context.Context) (string, error) {
	select {
	case l := <-s.lines:
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// inputFunc adapts a function to domain.InputSource.
type inputFunc func(ctx context.Context) (string, error)

func (f inputFunc) ReadLine(ctx context.Context) (string, error) { return f(ctx) }

// quitOnceReceived types :q as soon as h holds a record.
func quitOnceReceived(h func() domain.HistoryStore) inputFunc {
	return func(ctx context.Context) (string, error) {
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			if recs, err := h().List(ctx); err == nil && len(recs) > 0 {
				return ":q", nil
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-tick.C:
			}
		}
	}
}

// countingKEX counts completed exchanges.
type countingKEX struct {
	inner domain.KeyExchanger
	n     atomic.Int32
}

func (c *countingKEX) Exchange(ctx context.Context, role domain.PeerRole, rw io.ReadWriter) (domain.SessionKey, error) {
	k, err := c.inner.Exchange(ctx, role, rw)
	if err == nil {
		c.n.Add(1)
	}
	return k, err
}

type safeBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type peer struct {
	sched   *session.Scheduler
	history *store.MemoryHistory
	kex     *countingKEX
	out     *safeBuffer
}

func newPeer(t *testing.T, link *transport.Link, in domain.InputSource) *peer {
	t.Helper()
	log := zaptest.NewLogger(t).Named(link.Role.String())
	codec, err := envelope.New(domain.TierStandard, "")
	require.NoError(t, err)

	h := store.NewMemoryHistory()
	m := metrics.New()
	out := &safeBuffer{}
	kex := &countingKEX{inner: tdh.NewEngine(tdh.Options{Logger: log})}
	sched := session.New(link, session.Config{
		KeyExchange: kex,
		Messages:    message.New(codec, h, m, log),
		Commands:    command.New(h, in, out),
		Input:       in,
		Output:      out,
		Metrics:     m,
		Logger:      log,
	})
	return &peer{sched: sched, history: h, kex: kex, out: out}
}

func pipeLinks() (*transport.Link, *transport.Link) {
	d1, d2 := net.Pipe()
	c1, c2 := net.Pipe()
	return &transport.Link{Role: domain.Initiator, Data: d1, Control: c1, Remote: "pipe"},
		&transport.Link{Role: domain.Responder, Data: d2, Control: c2, Remote: "pipe"}
}

type entry struct {
	Person domain.Person
	Text   string
}

func entries(t *testing.T, h domain.HistoryStore) []entry {
	t.Helper()
	recs, err := h.List(context.Background())
	require.NoError(t, err)
	var out []entry
	for _, r := range recs {
		out = append(out, entry{r.Person, r.Text})
	}
	return out
}

func TestScheduler_MessageAdminReplyQuit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	la, lb := pipeLinks()
	alice := newPeer(t, la, script("hello", ":q"))
	bob := newPeer(t, lb, script(":v", "hi back"))

	errs := make(chan error, 1)
	go func() { errs <- bob.sched.Run(ctx) }()

	require.NoError(t, alice.sched.Run(ctx))
	bobErr := <-errs
	require.ErrorIs(t, bobErr, domain.ErrPeerClosed)

	require.Equal(t, domain.StateTerminated, alice.sched.State())
	require.Equal(t, domain.StateTerminated, bob.sched.State())

	require.Equal(t, []entry{
		{domain.PersonYou, "hello"},
		{domain.PersonPeer, "hi back"},
	}, entries(t, alice.history))
	require.ElementsMatch(t, []entry{
		{domain.PersonPeer, "hello"},
		{domain.PersonYou, "hi back"},
	}, entries(t, bob.history))

	// One exchange to open, one after the message round on each side. Bob's
	// :v round kept the key.
	require.EqualValues(t, 2, alice.kex.n.Load())
	require.EqualValues(t, 2, bob.kex.n.Load())

	require.Contains(t, alice.out.String(), "Peer: hi back")
	require.Contains(t, bob.out.String(), "Peer: hello")
	require.Contains(t, bob.out.String(), "Peer disconnected.")
}

func TestScheduler_ForgedMACIsFatal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	la, lb := pipeLinks()
	alice := newPeer(t, la, script())

	// Mallory completes a real key exchange but seals with a different key.
	go func() {
		if _, err := tdh.RunAsResponder(ctx, lb.Control, tdh.Options{}); err != nil {
			return
		}
		codec, _ := envelope.New(domain.TierStandard, "")
		var wrong domain.SessionKey
		env, err := codec.Encode([]byte("trust me"), &wrong)
		if err != nil {
			return
		}
		_ = framing.WriteFrame(lb.Data, env)
		<-ctx.Done()
	}()

	err := alice.sched.Run(ctx)
	require.ErrorIs(t, err, domain.ErrIntegrity)
	require.True(t, domain.IsSessionFatal(err))
	require.Equal(t, domain.StateTerminated, alice.sched.State())
	require.Empty(t, entries(t, alice.history))
}

func TestScheduler_HandshakeFailureEndsSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	la, lb := pipeLinks()
	alice := newPeer(t, la, script())
	go func() {
		buf := make([]byte, len(tdh.InitToken))
		if _, err := io.ReadFull(lb.Control, buf); err == nil {
			_, _ = lb.Control.Write([]byte("GARBAGE_TOKEN"))
		}
		<-ctx.Done()
	}()

	err := alice.sched.Run(ctx)
	require.ErrorIs(t, err, domain.ErrHandshake)
	require.ErrorIs(t, err, tdh.ErrUnexpectedToken)
}

func TestScheduler_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	la, lb := pipeLinks()
	alice := newPeer(t, la, script())
	bob := newPeer(t, lb, script())

	errs := make(chan error, 2)
	go func() { errs <- alice.sched.Run(ctx) }()
	go func() { errs <- bob.sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		return alice.sched.State() == domain.StateMessaging && bob.sched.State() == domain.StateMessaging
	}, 10*time.Second, 10*time.Millisecond)
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestScheduler_PeerQuitDuringNextExchange(t *testing.T) {
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		la, lb := pipeLinks()
		alice := newPeer(t, la, script("hello"))
		var bob *peer
		bob = newPeer(t, lb, quitOnceReceived(func() domain.HistoryStore { return bob.history }))

		errs := make(chan error, 1)
		go func() { errs <- bob.sched.Run(ctx) }()

		// Alice moves straight into the next exchange after sending.
		err := alice.sched.Run(ctx)
		require.ErrorIs(t, err, domain.ErrPeerClosed)
		require.False(t, domain.IsSessionFatal(err))
		require.NoError(t, <-errs)

		require.Equal(t, 1, strings.Count(alice.out.String(), "Peer disconnected."))
		require.Equal(t, []entry{{domain.PersonPeer, "hello"}}, entries(t, bob.history))
	}
}

func TestScheduler_LineTooLongIsSkipped(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	la, lb := pipeLinks()
	calls := 0
	alice := newPeer(t, la, inputFunc(func(ctx context.Context) (string, error) {
		calls++
		switch calls {
		case 1:
			return "", domain.ErrLineTooLong
		case 2:
			return "short enough", nil
		default:
			return ":q", nil
		}
	}))
	var bob *peer
	bob = newPeer(t, lb, quitOnceReceived(func() domain.HistoryStore { return bob.history }))

	errs := make(chan error, 1)
	go func() { errs <- bob.sched.Run(ctx) }()

	err := alice.sched.Run(ctx)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrPeerClosed)
	}
	require.NoError(t, <-errs)

	require.Contains(t, alice.out.String(), "Line too long, not sent.")
	require.Equal(t, []entry{{domain.PersonPeer, "short enough"}}, entries(t, bob.history))
	// The skipped line kept the opening key.
	require.EqualValues(t, 1, bob.kex.n.Load())
}
