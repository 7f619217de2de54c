package tdh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"

	"denim/internal/crypto"
	"denim/internal/domain"
)

const (
	// InitToken opens a round; only the Initiator sends it.
	InitToken = "INIT_DHKE"
	// AckToken is the Responder's reply to InitToken.
	AckToken = "INIT_DHKE_ACK"

	// DefaultStepTimeout bounds every handshake step after the opening tokens.
	DefaultStepTimeout = 10 * time.Second
)

// ErrUnexpectedToken is a control token other than the one the role expects.
var ErrUnexpectedToken = errors.New("unexpected handshake token")

// Options configures a key exchange. The zero value is usable.
type Options struct {
	// Group defaults to MODP1536.
	Group *crypto.Group
	// Scalars defaults to uniform scalars from crypto/rand.
	Scalars ScalarSource
	// StartTimeout bounds the opening token exchange. The peer only starts its
	// half after its own operator has finished a round, so zero means the
	// wait is bounded by the context alone.
	StartTimeout time.Duration
	// StepTimeout bounds each later step; zero means DefaultStepTimeout.
	StepTimeout time.Duration
	Logger      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Group == nil {
		o.Group = crypto.MODP1536()
	}
	if o.Scalars == nil {
		o.Scalars = RandomScalars(nil)
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = DefaultStepTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RunAsInitiator performs one 3-DH round on ch as the Initiator.
//
// Steps:
//  1. Send InitToken and wait for AckToken.
//  2. Draw a, send A = g^a, receive B.
//  3. Draw x, send X = g^x, receive Y.
//  4. Compute S1 = Y^a, S2 = B^x, S3 = Y^x and derive the session key.
//
// Every failure aborts the round with an error wrapping domain.ErrHandshake.
func RunAsInitiator(ctx context.Context, ch io.ReadWriter, opts Options) (domain.SessionKey, error) {
	opts = opts.withDefaults()
	grp := opts.Group
	start := time.Now()

	c := newConn(ctx, ch)
	defer c.release()

	if err := c.arm(opts.StartTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send init", []byte(InitToken)); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.expect("await ack", AckToken); err != nil {
		return domain.SessionKey{}, err
	}

	a, err := opts.Scalars.Scalar(grp)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: scalar: %w", domain.ErrHandshake, err)
	}
	defer crypto.WipeInt(a)
	if err := c.arm(opts.StepTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send A", grp.Encode(grp.Public(a))); err != nil {
		return domain.SessionKey{}, err
	}
	B, err := c.readElement("receive B", grp)
	if err != nil {
		return domain.SessionKey{}, err
	}

	x, err := opts.Scalars.Scalar(grp)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: scalar: %w", domain.ErrHandshake, err)
	}
	defer crypto.WipeInt(x)
	if err := c.arm(opts.StepTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send X", grp.Encode(grp.Public(x))); err != nil {
		return domain.SessionKey{}, err
	}
	Y, err := c.readElement("receive Y", grp)
	if err != nil {
		return domain.SessionKey{}, err
	}

	secrets := InitiatorSecrets(grp, a, x, B, Y)
	defer secrets.Wipe()
	key, err := DeriveSessionKey(secrets)
	if err != nil {
		return domain.SessionKey{}, err
	}
	opts.Logger.Debug("key exchange complete",
		zap.Stringer("role", domain.Initiator),
		zap.String("key", crypto.Fingerprint(key[:])),
		zap.Duration("took", time.Since(start)))
	return key, nil
}

// RunAsResponder performs one 3-DH round on ch as the Responder.
//
// Steps:
//  1. Wait for InitToken and reply AckToken.
//  2. Draw b, receive A, send B = g^b.
//  3. Draw y, receive X, send Y = g^y.
//  4. Compute S1 = A^y, S2 = X^b, S3 = X^y and derive the session key.
func RunAsResponder(ctx context.Context, ch io.ReadWriter, opts Options) (domain.SessionKey, error) {
	opts = opts.withDefaults()
	grp := opts.Group
	start := time.Now()

	c := newConn(ctx, ch)
	defer c.release()

	if err := c.arm(opts.StartTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.expect("await init", InitToken); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.arm(opts.StepTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send ack", []byte(AckToken)); err != nil {
		return domain.SessionKey{}, err
	}

	b, err := opts.Scalars.Scalar(grp)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: scalar: %w", domain.ErrHandshake, err)
	}
	defer crypto.WipeInt(b)
	A, err := c.readElement("receive A", grp)
	if err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send B", grp.Encode(grp.Public(b))); err != nil {
		return domain.SessionKey{}, err
	}

	y, err := opts.Scalars.Scalar(grp)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: scalar: %w", domain.ErrHandshake, err)
	}
	defer crypto.WipeInt(y)
	if err := c.arm(opts.StepTimeout); err != nil {
		return domain.SessionKey{}, err
	}
	X, err := c.readElement("receive X", grp)
	if err != nil {
		return domain.SessionKey{}, err
	}
	if err := c.write("send Y", grp.Encode(grp.Public(y))); err != nil {
		return domain.SessionKey{}, err
	}

	secrets := ResponderSecrets(grp, b, y, A, X)
	defer secrets.Wipe()
	key, err := DeriveSessionKey(secrets)
	if err != nil {
		return domain.SessionKey{}, err
	}
	opts.Logger.Debug("key exchange complete",
		zap.Stringer("role", domain.Responder),
		zap.String("key", crypto.Fingerprint(key[:])),
		zap.Duration("took", time.Since(start)))
	return key, nil
}

// Engine runs rounds with fixed Options; it satisfies domain.KeyExchanger.
type Engine struct {
	opts Options
}

// NewEngine returns an Engine using opts for every round.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Exchange dispatches to RunAsInitiator or RunAsResponder by role.
func (e *Engine) Exchange(ctx context.Context, role domain.PeerRole, control io.ReadWriter) (domain.SessionKey, error) {
	switch role {
	case domain.Initiator:
		return RunAsInitiator(ctx, control, e.opts)
	case domain.Responder:
		return RunAsResponder(ctx, control, e.opts)
	default:
		return domain.SessionKey{}, fmt.Errorf("%w: no role assigned", domain.ErrHandshake)
	}
}

var _ domain.KeyExchanger = (*Engine)(nil)

// ScalarSource supplies private exponents, in draw order.
type ScalarSource interface {
	Scalar(grp *crypto.Group) (*big.Int, error)
}

type randomScalars struct{ r io.Reader }

// RandomScalars draws uniform exponents from r, or crypto/rand when r is nil.
func RandomScalars(r io.Reader) ScalarSource { return randomScalars{r: r} }

func (s randomScalars) Scalar(grp *crypto.Group) (*big.Int, error) {
	return grp.RandomScalar(s.r)
}

type fixedScalars struct {
	vals []int64
	next int
}

// FixedScalars replays vals in order and fails once they are exhausted.
// It exists for deterministic test vectors and must never be used on a live
// connection.
func FixedScalars(vals ...int64) ScalarSource {
	return &fixedScalars{vals: vals}
}

func (s *fixedScalars) Scalar(*crypto.Group) (*big.Int, error) {
	if s.next >= len(s.vals) {
		return nil, errors.New("fixed scalars exhausted")
	}
	v := s.vals[s.next]
	s.next++
	return big.NewInt(v), nil
}
