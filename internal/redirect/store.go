// Package redirect keeps the small amount of state that must survive an
// external OAuth round trip: the path to return to and a snapshot of a
// completed conversion. State is scoped to one tab (one process) and every
// read-once value is consumed with Take.
package redirect

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Well-known keys.
const (
	KeyReturnPath = "sketchflow.returnPath"
	KeySnapshot   = "sketchflow.pendingResult"
)

// Store is a tab-scoped key-value store. Writes complete before Save returns.
type Store interface {
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error
	// Load returns the value without removing it.
	Load(ctx context.Context, key string) (string, bool, error)
	// Take returns the value and deletes it; a second Take reports not found.
	Take(ctx context.Context, key string) (string, bool, error)
}

// NewTabID returns a fresh identifier for scoping a store to one tab.
func NewTabID() string {
	return uuid.NewString()
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok, nil
}
