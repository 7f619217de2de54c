// Package command classifies operator lines and runs the local ones.
//
// Lines starting a command (:v, :e, :d, :h, :q) never reach the peer. The
// local ones operate on the message history and leave the session key in
// place for the next round; :q ends the session.
package command
