// Package message implements the per-round send and receive tasks.
//
// Each call handles exactly one envelope: Send frames and writes one message
// and Receive reads and opens one. The session scheduler decides which key
// each call uses.
package message
