// Package store persists denim's plaintext message history.
//
// Each peer gets its own SQLite database under <home>/logs, holding a single
// MSG_LOGS table. Records are indexed densely from 1; deleting a record
// shifts the later ones down. All methods are concurrency-safe via internal
// locking, so the send path and the receive task can append at once.
//
// MemoryHistory offers the same contract without touching disk, for sessions
// run with history persistence turned off. ExportJSON dumps a history to a
// JSON file for offline review.
package store
