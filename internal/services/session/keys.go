package session

import (
	"context"
	"sync"
	"sync/atomic"

	"denim/internal/crypto"
	"denim/internal/domain"
)

// epoch is one derived session key. The send path and the receive task each
// hold one reference; the last release wipes the key.
type epoch struct {
	n    int
	key  domain.SessionKey
	refs atomic.Int32
}

func (e *epoch) release() {
	if e.refs.Add(-1) == 0 {
		crypto.Wipe(e.key[:])
	}
}

// keySchedule hands each new epoch to the receive task in order. Receiving
// from ready is the receive task's "key ready" signal for that epoch.
type keySchedule struct {
	ready chan *epoch

	mu  sync.Mutex
	all []*epoch
}

func newKeySchedule() *keySchedule {
	return &keySchedule{ready: make(chan *epoch, 8)}
}

// publish copies key into a new epoch and signals the receive task.
func (ks *keySchedule) publish(ctx context.Context, key *domain.SessionKey) (*epoch, error) {
	ks.mu.Lock()
	e := &epoch{n: len(ks.all) + 1, key: *key}
	e.refs.Store(2)
	ks.all = append(ks.all, e)
	ks.mu.Unlock()

	select {
	case ks.ready <- e:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// next blocks until the following epoch is published.
func (ks *keySchedule) next(ctx context.Context) (*epoch, error) {
	select {
	case e := <-ks.ready:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// wipeAll clears every key regardless of references. Only call it once both
// tasks have stopped.
func (ks *keySchedule) wipeAll() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for _, e := range ks.all {
		crypto.Wipe(e.key[:])
	}
	ks.all = nil
}
