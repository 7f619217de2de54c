// Package tdh implements the triple Diffie-Hellman key agreement that keys
// every denim round.
//
// # Overview
//
// Two peers run one exchange per round over the control connection, in a
// 1536-bit MODP group by default. Nothing long-term is involved: each side
// draws two fresh exponents per round and both discard them once the session
// key exists, so no transcript binds either party to the conversation.
//
// # Flows
//
// Initiator:
//  1. Send InitToken, wait for AckToken.
//  2. Send A = g^a, receive B.
//  3. Send X = g^x, receive Y.
//  4. S1 = Y^a, S2 = B^x, S3 = Y^x.
//
// Responder:
//  1. Wait for InitToken, send AckToken.
//  2. Receive A, send B = g^b.
//  3. Receive X, send Y = g^y.
//  4. S1 = A^y, S2 = X^b, S3 = X^y.
//
// Both sides then derive the key as HKDF-SHA256 over SHA-512(S1 || S2 || S3).
// Group elements travel raw and big-endian at the group's fixed width.
//
// # Errors
//
// Every failure wraps domain.ErrHandshake. A step that outlives its deadline
// wraps domain.ErrHandshakeTimeout. ErrUnexpectedToken marks a desynchronised
// control stream. Received elements outside [2, p-2] are rejected.
//
// # Security notes
//
// Exponents and the three raw secrets are wiped before the run returns. The
// engine never retries; a failed round leaves the control stream in an
// unknown position and the caller decides what happens next.
package tdh
