package memory

import (
	"context"
	"errors"
	"sync"

	"campus-ledger/internal/eventing"
)

// OutboxStore is an in-memory outbox used for tests and single-process runs.
type OutboxStore struct {
	mu      sync.Mutex
	pending []eventing.OutboxRecord
	sent    map[string]eventing.Envelope
	failed  map[string]int
}

// NewOutboxStore constructs an empty store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		sent:   make(map[string]eventing.Envelope),
		failed: make(map[string]int),
	}
}

// Insert appends an envelope to the pending queue.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	_ = ctx
	if env.EventID == "" {
		return "", errors.New("outbox store: empty event id")
	}
	id := eventing.NewEventID()
	s.mu.Lock()
	s.pending = append(s.pending, eventing.OutboxRecord{ID: id, Envelope: env})
	s.mu.Unlock()
	return id, nil
}

// ListPending returns up to limit pending records in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	return append([]eventing.OutboxRecord(nil), s.pending[:limit]...), nil
}

// MarkSent removes a record from the pending queue.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.pending {
		if record.ID == id {
			s.sent[id] = record.Envelope
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return errors.New("outbox store: unknown record")
}

// MarkFailed removes a record from the pending queue and counts the failure.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, record := range s.pending {
		if record.ID == id {
			s.failed[id]++
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return errors.New("outbox store: unknown record")
}

// SentCount reports delivered records, for assertions.
func (s *OutboxStore) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
