// Package mock provides an in-memory test double for store.CallStore.
package mock

import (
	"context"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
)

// Store is a mock implementation of store.CallStore backed by a map.
// Zero value is ready to use.
type Store struct {
	mu sync.Mutex

	// SaveErr, if non-nil, is returned by every Save call.
	SaveErr error

	// PingErr, if non-nil, is returned by every Ping call.
	PingErr error

	// Records holds every saved record keyed by session ID.
	Records map[string]store.CallRecord

	// SaveCount is the total number of Save invocations, including failed ones.
	SaveCount int
}

// Save records rec, replacing any earlier record with the same session ID.
func (s *Store) Save(_ context.Context, rec store.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCount++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.Records == nil {
		s.Records = make(map[string]store.CallRecord)
	}
	s.Records[rec.SessionID] = rec
	return nil
}

// Get returns the record for sessionID, or store.ErrNotFound.
func (s *Store) Get(_ context.Context, sessionID string) (*store.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Records[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// Ping returns PingErr.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Saved returns the record for sessionID and whether it exists. Thread-safe.
func (s *Store) Saved(sessionID string) (store.CallRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Records[sessionID]
	return rec, ok
}

// Ensure Store implements store.CallStore at compile time.
var _ store.CallStore = (*Store)(nil)
