// Package console is the operator's line-oriented terminal.
//
// One goroutine scans the input for the lifetime of the Console, so a
// ReadLine abandoned on context cancellation does not lose the line; the
// next ReadLine gets it. Output is serialised so the send path and the
// receive task can print concurrently.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"denim/internal/domain"
)

// MaxLineSize is the longest line ReadLine returns. Longer lines are
// dropped and reported as domain.ErrLineTooLong.
const MaxLineSize = 1 << 20

type line struct {
	text string
	err  error
}

// Console reads operator lines and writes notices.
type Console struct {
	lines chan line

	mu  sync.Mutex
	out io.Writer
}

// New starts scanning in and returns a Console writing to out.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{lines: make(chan line), out: out}
	go c.scan(in)
	return c
}

func (c *Console) scan(in io.Reader) {
	br := bufio.NewReader(in)
	var err error
	for {
		var text string
		text, err = readLine(br)
		if errors.Is(err, domain.ErrLineTooLong) {
			c.lines <- line{err: err}
			continue
		}
		if err != nil {
			break
		}
		c.lines <- line{text: text}
	}
	for {
		c.lines <- line{err: err}
	}
}

// readLine reads up to the next newline, holding at most MaxLineSize bytes
// of it. An unterminated last line is returned before io.EOF.
func readLine(br *bufio.Reader) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		frag, err := br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, frag...)
			if len(buf) > MaxLineSize+len("\r\n") {
				buf, tooLong = nil, true
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || (len(buf) == 0 && !tooLong)) {
			return "", err
		}
		break
	}
	text := strings.TrimSuffix(string(buf), "\n")
	text = strings.TrimSuffix(text, "\r")
	if tooLong || len(text) > MaxLineSize {
		return "", domain.ErrLineTooLong
	}
	return text, nil
}

// ReadLine returns the next input line without its terminator. It returns
// domain.ErrLineTooLong for a line over MaxLineSize, which is skipped, and
// io.EOF once the input is exhausted.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-c.lines:
		return l.text, l.err
	}
}

// Write implements io.Writer with serialised access to the output.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

var _ domain.InputSource = (*Console)(nil)
