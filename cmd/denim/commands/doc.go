// Package commands defines the denim CLI and wires dependencies for subcommands.
//
// Commands
//
//   - chat             Wait for (or dial) a peer and run an encrypted session
//   - history list     Print the message history kept for a peer
//   - history edit     Replace the text of one message
//   - history delete   Delete one message and renumber the rest
//   - history export   Dump a peer's history to JSON
//
// # Implementation
//
// The root command loads configuration (defaults, denim.yaml, DENIM_*
// environment, flags) and builds the shared wiring before any subcommand
// runs, so handlers get one logger, one metrics registry and one codec.
package commands
