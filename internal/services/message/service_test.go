package message_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"denim/internal/domain"
	"denim/internal/metrics"
	"denim/internal/protocol/envelope"
	"denim/internal/services/message"
	"denim/internal/store"
)

func newService(t *testing.T) (*message.Service, *store.MemoryHistory) {
	t.Helper()
	codec, err := envelope.New(domain.TierStandard, "")
	require.NoError(t, err)
	h := store.NewMemoryHistory()
	return message.New(codec, h, metrics.New(), nil), h
}

func TestSendReceive_LogsBothSides(t *testing.T) {
	var key domain.SessionKey
	key[3] = 9
	alice, aliceLog := newService(t)
	bob, bobLog := newService(t)

	var wire bytes.Buffer
	require.NoError(t, alice.Send(context.Background(), &wire, "hello bob", &key))
	got, err := bob.Receive(context.Background(), &wire, &key)
	require.NoError(t, err)
	require.Equal(t, "hello bob", got)

	a, _ := aliceLog.List(context.Background())
	b, _ := bobLog.List(context.Background())
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	require.Equal(t, domain.PersonYou, a[0].Person)
	require.Equal(t, domain.PersonPeer, b[0].Person)
	require.Equal(t, "hello bob", b[0].Text)
}

func TestReceive_WrongKeyLogsNothing(t *testing.T) {
	var k1, k2 domain.SessionKey
	k2[0] = 1
	alice, _ := newService(t)
	bob, bobLog := newService(t)

	var wire bytes.Buffer
	require.NoError(t, alice.Send(context.Background(), &wire, "x", &k1))
	_, err := bob.Receive(context.Background(), &wire, &k2)
	require.ErrorIs(t, err, domain.ErrIntegrity)

	b, _ := bobLog.List(context.Background())
	require.Empty(t, b)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestSend_WriteFailureIsTransport(t *testing.T) {
	var key domain.SessionKey
	svc, h := newService(t)
	err := svc.Send(context.Background(), brokenWriter{}, "x", &key)
	require.ErrorIs(t, err, domain.ErrTransport)
	recs, _ := h.List(context.Background())
	require.Empty(t, recs, "unsent messages must not be logged")
}
