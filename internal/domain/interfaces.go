package domain

import (
	"context"
	"io"
)

// HistoryStore persists the plaintext message log for one peer.
//
// Implementations serialise writes; callers may use a store from several
// goroutines.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
	List(ctx context.Context) ([]HistoryRecord, error)
	// Update replaces the text of the record at index.
	Update(ctx context.Context, index int, text string) error
	// Delete removes the record at index and re-indexes the rest densely.
	Delete(ctx context.Context, index int) error
	Close() error
}

// InputSource yields operator lines one at a time.
type InputSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// KeyExchanger runs one key agreement on a control channel.
type KeyExchanger interface {
	Exchange(ctx context.Context, role PeerRole, control io.ReadWriter) (SessionKey, error)
}

// EnvelopeCodec turns plaintext into envelopes and back under a session key.
type EnvelopeCodec interface {
	Encode(plaintext []byte, key *SessionKey) (Envelope, error)
	Decode(env Envelope, key *SessionKey) ([]byte, error)
}
