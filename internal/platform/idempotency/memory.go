package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps submissions in process memory for single instance deployments and tests.
type MemoryStore struct {
	mu          sync.Mutex
	submissions map[Scope]Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{submissions: make(map[Scope]Submission)}
}

func (s *MemoryStore) Reserve(_ context.Context, scope Scope, fingerprint string, now time.Time, lease time.Duration) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.submissions[scope]
	reservation, write, err := reserve(existing, found, scope, fingerprint, now.UTC(), lease)
	if err != nil {
		return Reservation{}, err
	}
	if write != nil {
		s.submissions[scope] = *write
	}
	return reservation, nil
}

func (s *MemoryStore) Complete(_ context.Context, scope Scope, fingerprint string, order PlacedOrder, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.submissions[scope]
	placed, err := complete(existing, found, scope, fingerprint, order, resp, now.UTC(), ttl)
	if err != nil {
		return err
	}
	s.submissions[scope] = placed
	return nil
}

func (s *MemoryStore) Release(_ context.Context, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submissions, scope)
	return nil
}

// CleanupExpired drops at most limit expired submissions. A non positive limit removes all of them.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for scope, submission := range s.submissions {
		if limit > 0 && removed >= limit {
			break
		}
		if !submission.expired(now) {
			continue
		}
		delete(s.submissions, scope)
		removed++
	}
	return removed, nil
}

// Lookup returns the stored submission for scope.
func (s *MemoryStore) Lookup(scope Scope) (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission, ok := s.submissions[scope]
	return submission, ok
}
