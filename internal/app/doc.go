// Package app wires application dependencies for the CLI.
//
// Configuration comes from defaults, an optional denim.yaml, DENIM_*
// environment variables and command-line flags, in increasing priority. From
// Config it builds the logger, metrics, envelope codec and key exchange
// engine, and per session the history store and scheduler.
package app
