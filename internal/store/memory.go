package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"denim/internal/domain"
)

// MemoryHistory keeps the history for the current process only. It backs
// sessions run with persistence disabled.
type MemoryHistory struct {
	mu   sync.Mutex
	recs []domain.HistoryRecord
}

// NewMemoryHistory returns an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) Append(_ context.Context, rec domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	rec.Index = len(m.recs) + 1
	m.recs = append(m.recs, rec)
	return nil
}

func (m *MemoryHistory) List(context.Context) ([]domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryRecord(nil), m.recs...), nil
}

func (m *MemoryHistory) Update(_ context.Context, index int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 1 || index > len(m.recs) {
		return fmt.Errorf("%w: index %d", domain.ErrRecordNotFound, index)
	}
	m.recs[index-1].Text = text
	return nil
}

func (m *MemoryHistory) Delete(_ context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 1 || index > len(m.recs) {
		return fmt.Errorf("%w: index %d", domain.ErrRecordNotFound, index)
	}
	m.recs = append(m.recs[:index-1], m.recs[index:]...)
	for i := range m.recs {
		m.recs[i].Index = i + 1
	}
	return nil
}

func (m *MemoryHistory) Close() error { return nil }

var _ domain.HistoryStore = (*MemoryHistory)(nil)
