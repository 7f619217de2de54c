// Package session schedules the rounds of a denim session.
//
// The Scheduler owns the link to the peer. It alternates key exchanges on the
// control connection with message rounds on the data connection, keeps a
// single receive task alive for the whole session and hands it each new key
// through a channel. Fatal errors (integrity, authenticity, transport) end
// the session and are returned to the caller.
package session
