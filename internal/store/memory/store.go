// Package memory is a claim store held in process memory. It backs tests,
// the CLI and single-instance deployments started with STORE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Store keeps claims in a map keyed by compound key. Every method copies
// claims on the way in and out.
type Store struct {
	mu     sync.RWMutex
	claims map[string]domain.Claim
}

// New creates an empty store.
func New() *Store {
	return &Store{claims: make(map[string]domain.Claim)}
}

func (s *Store) Insert(_ context.Context, c domain.Claim) (domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Key().String()
	if _, exists := s.claims[key]; exists {
		return domain.Claim{}, fmt.Errorf("claim %s exists: %w", key, domain.ErrAlreadyClaimed)
	}
	if c.Status.IsActive() {
		if active, ok := s.activeLocked(c.JobID); ok {
			return domain.Claim{}, fmt.Errorf("job %s held by %s: %w", c.JobID, active.ClaimedByUsername, domain.ErrAlreadyClaimed)
		}
	}

	c = c.Clone()
	c.Version = 1
	s.claims[key] = c
	return c.Clone(), nil
}

func (s *Store) Update(_ context.Context, c domain.Claim) (domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.Key().String()
	current, ok := s.claims[key]
	if !ok {
		return domain.Claim{}, fmt.Errorf("claim %s: %w", key, domain.ErrClaimNotFound)
	}
	if current.Version != c.Version {
		return domain.Claim{}, fmt.Errorf("claim %s at version %d, have %d: %w", key, current.Version, c.Version, domain.ErrStaleClaim)
	}

	c = c.Clone()
	c.Version++
	s.claims[key] = c
	return c.Clone(), nil
}

func (s *Store) FindByKey(_ context.Context, key domain.ClaimKey) (domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[key.String()]
	if !ok {
		return domain.Claim{}, fmt.Errorf("claim %s: %w", key, domain.ErrClaimNotFound)
	}
	return c.Clone(), nil
}

func (s *Store) FindActive(_ context.Context, jobID string) (domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.activeLocked(jobID)
	if !ok {
		return domain.Claim{}, fmt.Errorf("active claim for %s: %w", jobID, domain.ErrClaimNotFound)
	}
	return c.Clone(), nil
}

func (s *Store) FindStarted(_ context.Context, jobID, username string) (domain.Claim, error) {
	return s.findOwned(jobID, username, domain.StatusStarted)
}

func (s *Store) FindPaused(_ context.Context, jobID, username string) (domain.Claim, error) {
	return s.findOwned(jobID, username, domain.StatusPaused)
}

func (s *Store) findOwned(jobID, username string, status domain.Status) (domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.claims {
		if c.JobID == jobID && c.ClaimedByUsername == username && c.Status == status {
			return c.Clone(), nil
		}
	}
	return domain.Claim{}, fmt.Errorf("%s claim for %s by %s: %w", status, jobID, username, domain.ErrClaimNotFound)
}

func (s *Store) FindByJob(_ context.Context, jobID string) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Claim
	for _, c := range s.claims {
		if c.JobID == jobID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClaimedAt.Equal(out[j].ClaimedAt) {
			return out[i].ClaimedAt.Before(out[j].ClaimedAt)
		}
		return out[i].Key().Compare(out[j].Key()) < 0
	})
	return out, nil
}

func (s *Store) List(_ context.Context, f domain.ClaimFilter) ([]domain.Claim, int, error) {
	s.mu.RLock()
	var matched []domain.Claim
	for _, c := range s.claims {
		if f.Matches(c) {
			matched = append(matched, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ClaimedAt.Equal(matched[j].ClaimedAt) {
			return matched[i].ClaimedAt.After(matched[j].ClaimedAt)
		}
		return matched[i].Key().Compare(matched[j].Key()) < 0
	})

	total := len(matched)
	if f.PageSize <= 0 {
		return matched, total, nil
	}

	start := f.Offset()
	if start >= total {
		return []domain.Claim{}, total, nil
	}
	end := min(start+f.PageSize, total)
	return matched[start:end], total, nil
}

// Len returns the number of stored claims.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.claims)
}

func (s *Store) activeLocked(jobID string) (domain.Claim, bool) {
	for _, c := range s.claims {
		if c.JobID == jobID && c.Status.IsActive() {
			return c, true
		}
	}
	return domain.Claim{}, false
}
