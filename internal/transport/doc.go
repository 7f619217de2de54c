// Package transport opens the two TCP connections a session runs on.
//
// Messages travel on the data port; key exchanges run on the control port,
// which is always the data port plus one. Whoever completes a dial is the
// Initiator, whoever accepts is the Responder, and that role holds for the
// life of the Link.
package transport
