package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"denim/internal/crypto"
	"denim/internal/domain"
	"denim/internal/metrics"
	"denim/internal/services/command"
	"denim/internal/services/message"
	"denim/internal/transport"
)

const prompt = "Enter a message (:h for help): "

// Config carries the collaborators a Scheduler drives.
type Config struct {
	KeyExchange domain.KeyExchanger
	Messages    *message.Service
	Commands    *command.Service
	Input       domain.InputSource
	Output      io.Writer
	Metrics     *metrics.Metrics // optional
	Logger      *zap.Logger      // optional
}

// Scheduler runs the rounds of one session over an established link.
//
// A round is: an optional key exchange, then one operator line. A chat
// message is sent and forces a key exchange at the start of the next round;
// a local command keeps the key. One receive task runs for the whole session
// and consumes exactly one frame per key epoch, since each side sends at most
// one message per epoch.
type Scheduler struct {
	link *transport.Link
	cfg  Config
	id   string
	log  *zap.Logger
	out  *lockedWriter

	state  atomic.Int32
	hangup sync.Once
}

// New prepares a Scheduler for link. The session starts in
// StateRoleAssigned; Run takes it from there.
func New(link *transport.Link, cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	id := uuid.NewString()
	s := &Scheduler{
		link: link,
		cfg:  cfg,
		id:   id,
		log: cfg.Logger.With(
			zap.String("session", id),
			zap.Stringer("role", link.Role),
			zap.String("peer", link.Remote)),
		out: &lockedWriter{w: cfg.Output},
	}
	s.state.Store(int32(domain.StateRoleAssigned))
	return s
}

// ID is the random identifier that tags this session's log lines.
func (s *Scheduler) ID() string { return s.id }

// State reports where the session is in its lifecycle.
func (s *Scheduler) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Scheduler) setState(st domain.SessionState) {
	if prev := domain.SessionState(s.state.Swap(int32(st))); prev != st {
		s.log.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", st))
	}
}

// Run drives the session until the operator quits, the peer hangs up, ctx is
// cancelled or a fatal error occurs. A clean quit returns nil. The link is
// closed and every key wiped before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Any reason to stop unblocks both tasks by closing the sockets under them.
	stop := context.AfterFunc(gctx, func() { _ = s.link.Close() })
	defer stop()

	ks := newKeySchedule()
	s.log.Info("session started")

	g.Go(func() error { return s.receive(gctx, ks) })
	g.Go(func() error {
		defer cancel()
		return s.rounds(gctx, ks)
	})
	err := g.Wait()

	_ = s.link.Close()
	ks.wipeAll()
	s.setState(domain.StateTerminated)

	switch {
	case err == nil:
		s.log.Info("session ended")
	case domain.IsSessionFatal(err):
		s.log.Error("session aborted", zap.Error(err))
	default:
		s.log.Warn("session ended with error", zap.Error(err))
	}
	return err
}

// rounds is the send side: key exchange when due, then one operator line.
func (s *Scheduler) rounds(ctx context.Context, ks *keySchedule) error {
	var cur *epoch
	defer func() {
		if cur != nil {
			cur.release()
		}
	}()

	rekey := true
	for round := 1; ; round++ {
		log := s.log.With(zap.Int("round", round))

		if rekey {
			next, err := s.exchange(ctx, ks, log)
			if err != nil {
				return fmt.Errorf("round %d: %w", round, s.peerGone(ctx, err))
			}
			if cur != nil {
				cur.release()
			}
			cur = next
		}

		s.setState(domain.StateMessaging)
		fmt.Fprint(s.out, prompt)
		line, err := s.cfg.Input.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			log.Info("input closed")
			return nil
		}
		if errors.Is(err, domain.ErrLineTooLong) {
			fmt.Fprintln(s.out, "Line too long, not sent.")
			rekey = false
			continue
		}
		if err != nil {
			return err
		}

		switch kind := command.Classify(line); {
		case kind == command.Quit:
			log.Info("quit requested")
			return nil

		case kind.Local():
			if err := s.cfg.Commands.Execute(ctx, kind); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("command failed", zap.Stringer("command", kind), zap.Error(err))
				fmt.Fprintf(s.out, "Error: %v\n", err)
			}
			s.cfg.Metrics.Round(metrics.RoundCommand)
			rekey = false

		default:
			if err := s.cfg.Messages.Send(ctx, s.link.Data, line, &cur.key); err != nil {
				return fmt.Errorf("round %d: send: %w", round, s.peerGone(ctx, err))
			}
			log.Debug("message sent", zap.Int("epoch", cur.n))
			s.cfg.Metrics.Round(metrics.RoundMessage)
			rekey = true
		}
	}
}

func (s *Scheduler) exchange(ctx context.Context, ks *keySchedule, log *zap.Logger) (*epoch, error) {
	s.setState(domain.StateKeyExchange)
	start := time.Now()
	key, err := s.cfg.KeyExchange.Exchange(ctx, s.link.Role, s.link.Control)
	if err != nil && ctx.Err() == nil && domain.IsHangup(err) {
		err = fmt.Errorf("%w: %w", domain.ErrPeerClosed, err)
	}
	s.cfg.Metrics.Handshake(s.link.Role, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key[:])

	e, err := ks.publish(ctx, &key)
	if err != nil {
		return nil, err
	}
	log.Debug("session key ready", zap.Int("epoch", e.n), zap.String("key", crypto.Fingerprint(e.key[:])))
	return e, nil
}

// receive is the session's only receive task. For epoch n it waits for the
// key, reads one frame and opens it with that key.
func (s *Scheduler) receive(ctx context.Context, ks *keySchedule) error {
	for {
		e, err := ks.next(ctx)
		if err != nil {
			return nil
		}
		text, err := s.cfg.Messages.Receive(ctx, s.link.Data, &e.key)
		n := e.n
		e.release()
		if err != nil {
			if ctx.Err() != nil {
				// Our own shutdown closed the link.
				return nil
			}
			return fmt.Errorf("epoch %d: receive: %w", n, s.peerGone(ctx, err))
		}
		s.log.Debug("message received", zap.Int("epoch", n))
		fmt.Fprintf(s.out, "\nPeer: %s\n", text)
	}
}

// peerGone tells the operator once that the peer hung up when err says so.
// err is returned unchanged.
func (s *Scheduler) peerGone(ctx context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(err, domain.ErrPeerClosed) {
		s.hangup.Do(func() { fmt.Fprintln(s.out, "\nPeer disconnected.") })
	}
	return err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
