// Package sink receives relayed records over HTTP and keeps them.
package sink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shadowproxy/shadowrelay/relay"
)

// Entry is a stored record plus the metadata the sink assigns on arrival.
type Entry struct {
	ID         string       `json:"id"`
	ReceivedAt time.Time    `json:"received_at"`
	Record     relay.Record `json:"record"`
}

// Store keeps received records in arrival order.
type Store interface {
	Add(ctx context.Context, rec relay.Record) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
}

func newEntry(rec relay.Record, now time.Time) Entry {
	return Entry{
		ID:         uuid.NewString(),
		ReceivedAt: now.UTC(),
		Record:     rec,
	}
}

// MemoryStore is a Store backed by a slice.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Add(_ context.Context, rec relay.Record) (Entry, error) {
	entry := newEntry(rec, s.now())
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return entry, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
