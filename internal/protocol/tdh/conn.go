package tdh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"sync"
	"time"

	"denim/internal/crypto"
	"denim/internal/domain"
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// conn wraps the control channel for one round. When the channel supports
// deadlines, each step is bounded and context cancellation unblocks I/O.
type conn struct {
	ctx  context.Context
	rw   io.ReadWriter
	dl   deadliner
	stop func() bool

	mu       sync.Mutex
	canceled bool
}

func newConn(ctx context.Context, rw io.ReadWriter) *conn {
	c := &conn{ctx: ctx, rw: rw, stop: func() bool { return false }}
	if dl, ok := rw.(deadliner); ok {
		c.dl = dl
		c.stop = context.AfterFunc(ctx, func() {
			c.mu.Lock()
			c.canceled = true
			_ = dl.SetDeadline(time.Unix(1, 0))
			c.mu.Unlock()
		})
	}
	return c
}

// arm sets the deadline for the next step. timeout <= 0 leaves only the
// context deadline, if any.
func (c *conn) arm(timeout time.Duration) error {
	if err := c.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrHandshake, err)
	}
	if c.dl == nil {
		return nil
	}
	var t time.Time
	if timeout > 0 {
		t = time.Now().Add(timeout)
	}
	if d, ok := c.ctx.Deadline(); ok && (t.IsZero() || d.Before(t)) {
		t = d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		return fmt.Errorf("%w: %w", domain.ErrHandshake, c.ctx.Err())
	}
	if err := c.dl.SetDeadline(t); err != nil {
		return fmt.Errorf("%w: set deadline: %w", domain.ErrHandshake, err)
	}
	return nil
}

func (c *conn) release() {
	c.stop()
	if c.dl != nil {
		c.mu.Lock()
		if !c.canceled {
			_ = c.dl.SetDeadline(time.Time{})
		}
		c.mu.Unlock()
	}
}

func (c *conn) write(op string, b []byte) error {
	if _, err := c.rw.Write(b); err != nil {
		return c.fail(op, err)
	}
	return nil
}

func (c *conn) read(op string, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return nil, c.fail(op, err)
	}
	return buf, nil
}

func (c *conn) expect(op, token string) error {
	got, err := c.read(op, len(token))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, []byte(token)) {
		return fmt.Errorf("%w: %s: %w %q", domain.ErrHandshake, op, ErrUnexpectedToken, got)
	}
	return nil
}

func (c *conn) readElement(op string, grp *crypto.Group) (*big.Int, error) {
	b, err := c.read(op, grp.Size())
	if err != nil {
		return nil, err
	}
	v, err := grp.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrHandshake, op, err)
	}
	return v, nil
}

func (c *conn) fail(op string, err error) error {
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrHandshake, op, ctxErr)
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s", domain.ErrHandshakeTimeout, op)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrHandshake, op, err)
}
