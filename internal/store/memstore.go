package store

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and store-less operation.
// All methods are safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	nextID      int64
	transcripts []TranscriptRecord
	corrections []CorrectionRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// SaveTranscript implements [Store].
func (m *MemStore) SaveTranscript(_ context.Context, rec *TranscriptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.nextID
	m.nextID++
	rec.CreatedAt = time.Now().UTC()
	m.transcripts = append(m.transcripts, *rec)
	return nil
}

// GetTranscript implements [Store].
func (m *MemStore) GetTranscript(_ context.Context, id int64) (*TranscriptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.transcripts {
		if m.transcripts[i].ID == id {
			rec := m.transcripts[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// ListTranscripts implements [Store].
func (m *MemStore) ListTranscripts(_ context.Context, opts ListOpts) ([]TranscriptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]TranscriptRecord, 0, len(m.transcripts))
	// Iterate backwards so newest records come first.
	for i := len(m.transcripts) - 1; i >= 0; i-- {
		rec := m.transcripts[i]
		if opts.Language != "" && rec.Language != opts.Language {
			continue
		}
		matched = append(matched, rec)
	}
	return page(matched, opts), nil
}

// SaveCorrection implements [Store].
func (m *MemStore) SaveCorrection(_ context.Context, rec *CorrectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.nextID
	m.nextID++
	rec.CreatedAt = time.Now().UTC()
	m.corrections = append(m.corrections, *rec)
	return nil
}

// GetCorrection implements [Store].
func (m *MemStore) GetCorrection(_ context.Context, id int64) (*CorrectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.corrections {
		if m.corrections[i].ID == id {
			rec := m.corrections[i]
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// ListCorrections implements [Store].
func (m *MemStore) ListCorrections(_ context.Context, opts ListOpts) ([]CorrectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]CorrectionRecord, 0, len(m.corrections))
	for i := len(m.corrections) - 1; i >= 0; i-- {
		rec := m.corrections[i]
		if opts.Language != "" && rec.Language != opts.Language {
			continue
		}
		matched = append(matched, rec)
	}
	return page(matched, opts), nil
}

// page applies offset and limit to an already-ordered slice.
func page[T any](records []T, opts ListOpts) []T {
	if opts.Offset >= len(records) {
		return []T{}
	}
	records = records[opts.Offset:]
	if limit := opts.EffectiveLimit(); len(records) > limit {
		records = records[:limit]
	}
	return records
}
