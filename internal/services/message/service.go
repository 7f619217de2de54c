package message

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"denim/internal/crypto"
	"denim/internal/domain"
	"denim/internal/metrics"
	"denim/internal/protocol/framing"
)

// Service moves single messages between the operator, the history and the
// data connection.
//
// High-level flow:
//   - Send: encode the line under the round's key, write one frame, then log
//     it as YOU.
//   - Receive: read one frame, decode it under the epoch's key, then log it
//     as PEER.
//
// Keys are borrowed for the duration of a call and never retained.
type Service struct {
	codec   domain.EnvelopeCodec
	history domain.HistoryStore
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// New constructs a message Service. m and log may be nil.
func New(codec domain.EnvelopeCodec, history domain.HistoryStore, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{codec: codec, history: history, metrics: m, log: log, now: time.Now}
}

// Send encrypts text and writes it to w as one frame.
//
// A history failure after a successful write is logged and not returned:
// the peer already has the message.
func (s *Service) Send(ctx context.Context, w io.Writer, text string, key *domain.SessionKey) error {
	env, err := s.codec.Encode([]byte(text), key)
	if err != nil {
		s.metrics.Envelope(metrics.Sent, err)
		return err
	}
	if err := framing.WriteFrame(w, env); err != nil {
		s.metrics.Envelope(metrics.Sent, err)
		return err
	}
	s.metrics.Envelope(metrics.Sent, nil)

	rec := domain.HistoryRecord{Person: domain.PersonYou, Text: text, Time: s.now()}
	if err := s.history.Append(ctx, rec); err != nil {
		s.log.Warn("history append failed", zap.String("person", string(rec.Person)), zap.Error(err))
	}
	return nil
}

// Receive blocks for one frame on r and returns its plaintext.
//
// Integrity and authenticity failures are returned unchanged so the caller
// can end the session; nothing is logged to the history for them.
func (s *Service) Receive(ctx context.Context, r io.Reader, key *domain.SessionKey) (string, error) {
	env, err := framing.ReadFrame(r)
	if err != nil {
		s.metrics.Envelope(metrics.Received, err)
		return "", err
	}
	plain, err := s.codec.Decode(env, key)
	s.metrics.Envelope(metrics.Received, err)
	if err != nil {
		return "", err
	}
	text := string(plain)
	crypto.Wipe(plain)

	rec := domain.HistoryRecord{Person: domain.PersonPeer, Text: text, Time: s.now()}
	if err := s.history.Append(ctx, rec); err != nil {
		s.log.Warn("history append failed", zap.String("person", string(rec.Person)), zap.Error(err))
	}
	return text, nil
}
