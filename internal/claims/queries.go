package claims

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Page is one page of a claim listing.
type Page struct {
	Claims   []domain.Claim `json:"claims"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int            `json:"total"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Get looks a claim up by its compound key.
func (s *Service) Get(ctx context.Context, key domain.ClaimKey) (domain.Claim, error) {
	if err := validate(key.JobID, key.Username); err != nil {
		return domain.Claim{}, err
	}
	key.ClaimedAt = domain.ClaimInstant(key.ClaimedAt)
	return s.store.FindByKey(ctx, key)
}

// ActiveForJob returns the claim currently holding jobID.
func (s *Service) ActiveForJob(ctx context.Context, jobID string) (domain.Claim, error) {
	if err := domain.ValidateJobID(jobID); err != nil {
		return domain.Claim{}, err
	}
	return s.store.FindActive(ctx, jobID)
}

// History returns every claim made for jobID, oldest first.
func (s *Service) History(ctx context.Context, jobID string) ([]domain.Claim, error) {
	if err := domain.ValidateJobID(jobID); err != nil {
		return nil, err
	}
	return s.store.FindByJob(ctx, jobID)
}

// ActiveClaims lists STARTED claims, newest first.
func (s *Service) ActiveClaims(ctx context.Context, page, size int) (Page, error) {
	return s.list(ctx, domain.ClaimFilter{Statuses: []domain.Status{domain.StatusStarted}}, page, size)
}

// ClaimsByUser lists a user's claims, optionally restricted to statuses.
func (s *Service) ClaimsByUser(ctx context.Context, username string, statuses []domain.Status, page, size int) (Page, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return Page{}, err
	}
	return s.list(ctx, domain.ClaimFilter{Username: username, Statuses: statuses}, page, size)
}

// MyClaims lists the caller's claims that still hold a job.
func (s *Service) MyClaims(ctx context.Context, username string) ([]domain.Claim, error) {
	p, err := s.ClaimsByUser(ctx, username, domain.ActiveStatuses, 1, MaxPageSize)
	if err != nil {
		return nil, err
	}
	return p.Claims, nil
}

func (s *Service) list(ctx context.Context, f domain.ClaimFilter, page, size int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	f.Page, f.PageSize = page, size

	claims, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("list claims: %w", err)
	}
	if claims == nil {
		claims = []domain.Claim{}
	}
	return Page{Claims: claims, Page: page, PageSize: size, Total: total}, nil
}
