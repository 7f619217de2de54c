package domain

import (
	"fmt"
	"time"
)

// PeerRole is fixed once per physical connection.
type PeerRole uint8

const (
	// Initiator dialed the peer and sends the handshake-initiation token.
	Initiator PeerRole = iota + 1
	// Responder accepted the inbound data connection.
	Responder
)

func (r PeerRole) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Tier selects what an envelope carries beyond encrypt-and-MAC.
type Tier uint8

const (
	// TierStandard envelopes carry ciphertext and MAC only.
	TierStandard Tier = iota
	// TierSigned envelopes also carry a one-time signature and the
	// password-wrapped key that produced it.
	TierSigned
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierSigned:
		return "signed"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// ParseTier maps a configuration value onto a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "", "standard":
		return TierStandard, nil
	case "signed", "ultra":
		return TierSigned, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// SessionKeySize is the length of a derived session key in bytes.
const SessionKeySize = 32

// SessionKey is the symmetric key shared by one peer pair for one key epoch.
type SessionKey [SessionKeySize]byte

// Envelope is the unit transmitted on the data connection.
//
// Field order is the serialised order. Signature and SigningKey are set iff
// the signing tier is enabled on the sender.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	MAC        string `json:"mac"`
	Signature  string `json:"signature,omitempty"`
	SigningKey string `json:"signing_key,omitempty"`
}

// Signed reports whether the envelope carries signing-tier fields.
func (e Envelope) Signed() bool {
	return e.Signature != "" || e.SigningKey != ""
}

// Person tags who wrote a history record.
type Person string

const (
	PersonYou  Person = "YOU"
	PersonPeer Person = "PEER"
)

// HistoryRecord is one logged plaintext message. Index is 1-based and dense.
type HistoryRecord struct {
	Index  int       `json:"index"`
	Person Person    `json:"person"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}
