package framing_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"denim/internal/domain"
	"denim/internal/protocol/envelope"
	"denim/internal/protocol/framing"
)

func TestFrame_RoundTripThroughCodec(t *testing.T) {
	var key domain.SessionKey
	key[0] = 1
	codec, err := envelope.New(domain.TierStandard, "")
	require.NoError(t, err)

	for _, msg := range []string{"", "hello"} {
		env, err := codec.Encode([]byte(msg), &key)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, framing.WriteFrame(&buf, env))
		got, err := framing.ReadFrame(&buf)
		require.NoError(t, err)
		require.Equal(t, env, got)
		require.Zero(t, buf.Len())

		plain, err := codec.Decode(got, &key)
		require.NoError(t, err)
		require.Equal(t, msg, string(plain))
	}
}

func TestFrame_StableFieldOrder(t *testing.T) {
	body, err := framing.Marshal(domain.Envelope{Ciphertext: "c", MAC: "m", Signature: "s", SigningKey: "k"})
	require.NoError(t, err)
	require.Equal(t, `{"ciphertext":"c","mac":"m","signature":"s","signing_key":"k"}`, string(body))

	body, err = framing.Marshal(domain.Envelope{Ciphertext: "c", MAC: "m"})
	require.NoError(t, err)
	require.Equal(t, `{"ciphertext":"c","mac":"m"}`, string(body))
}

// countingWriter records how many Write calls it received.
type countingWriter struct {
	bytes.Buffer
	calls int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls++
	return w.Buffer.Write(p)
}

func TestWriteFrame_SingleWrite(t *testing.T) {
	var w countingWriter
	require.NoError(t, framing.WriteFrame(&w, domain.Envelope{Ciphertext: "00", MAC: "11"}))
	require.Equal(t, 1, w.calls)
	require.Equal(t, uint32(w.Len()-4), binary.BigEndian.Uint32(w.Bytes()[:4]))
}

func TestReadFrame_ShortReads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, framing.WriteFrame(&buf, domain.Envelope{Ciphertext: "00", MAC: "11"}))
	full := buf.Bytes()

	for _, cut := range []int{2, 4, len(full) - 1} {
		_, err := framing.ReadFrame(bytes.NewReader(full[:cut]))
		require.ErrorIs(t, err, domain.ErrFraming, "cut at %d", cut)
	}
}

func TestReadFrame_EOFIsPeerClosed(t *testing.T) {
	_, err := framing.ReadFrame(bytes.NewReader(nil))
	require.ErrorIs(t, err, domain.ErrPeerClosed)
	require.ErrorIs(t, err, domain.ErrTransport)
	require.False(t, errors.Is(err, domain.ErrFraming))
}

func TestReadFrame_RejectsBadLengthAndBody(t *testing.T) {
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, framing.MaxFrameSize+1)
	_, err := framing.ReadFrame(bytes.NewReader(hdr))
	require.ErrorIs(t, err, domain.ErrFraming)

	_, err = framing.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}))
	require.ErrorIs(t, err, domain.ErrFraming)

	_, err = framing.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 3, '{', 'x', '}'}))
	require.ErrorIs(t, err, domain.ErrFraming)
}

// failingReader yields prefix, then fails with err.
type failingReader struct {
	prefix []byte
	err    error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.prefix) == 0 {
		return 0, r.err
	}
	n := copy(p, r.prefix)
	r.prefix = r.prefix[n:]
	return n, nil
}

func TestReadFrame_SocketErrorsAreTransport(t *testing.T) {
	header := []byte{0, 0, 0, 10}

	for _, tc := range []struct {
		name       string
		r          io.Reader
		peerClosed bool
	}{
		{"reset before header", &failingReader{err: syscall.ECONNRESET}, true},
		{"reset inside body", &failingReader{prefix: header, err: syscall.ECONNRESET}, true},
		{"closed connection", &failingReader{err: net.ErrClosed}, true},
		{"deadline", &failingReader{err: os.ErrDeadlineExceeded}, false},
		{"deadline inside body", &failingReader{prefix: header, err: os.ErrDeadlineExceeded}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := framing.ReadFrame(tc.r)
			require.ErrorIs(t, err, domain.ErrTransport)
			require.False(t, errors.Is(err, domain.ErrFraming))
			require.Equal(t, tc.peerClosed, errors.Is(err, domain.ErrPeerClosed))
		})
	}
}

func TestWriteFrame_ClosedPeerIsPeerClosed(t *testing.T) {
	a, b := net.Pipe()
	require.NoError(t, b.Close())
	defer a.Close()

	err := framing.WriteFrame(a, domain.Envelope{Ciphertext: "00", MAC: "11"})
	require.ErrorIs(t, err, domain.ErrPeerClosed)
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
