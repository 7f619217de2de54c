package domain

import "fmt"

// SessionState is the scheduler's position in a session's lifecycle.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateRoleAssigned
	StateKeyExchange
	StateMessaging
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRoleAssigned:
		return "role-assigned"
	case StateKeyExchange:
		return "key-exchange"
	case StateMessaging:
		return "messaging"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
