package claims

import (
	"context"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Store persists claims. Lookups that find nothing return
// domain.ErrClaimNotFound.
type Store interface {
	// Insert stores a new claim with Version 1. It fails with
	// domain.ErrAlreadyClaimed when the job already has an active claim, so
	// two racing claimants cannot both succeed.
	Insert(ctx context.Context, c domain.Claim) (domain.Claim, error)

	// Update replaces the claim with the same compound key if its stored
	// version equals c.Version, returning the claim with the next version.
	// A version mismatch fails with domain.ErrStaleClaim.
	Update(ctx context.Context, c domain.Claim) (domain.Claim, error)

	FindByKey(ctx context.Context, key domain.ClaimKey) (domain.Claim, error)

	// FindActive returns the job's claim in UNVERIFIED, STARTED or PAUSED.
	FindActive(ctx context.Context, jobID string) (domain.Claim, error)

	FindStarted(ctx context.Context, jobID, username string) (domain.Claim, error)
	FindPaused(ctx context.Context, jobID, username string) (domain.Claim, error)

	// FindByJob returns every claim ever made for the job, oldest first.
	FindByJob(ctx context.Context, jobID string) ([]domain.Claim, error)

	// List returns one page of matching claims, newest first, and the total
	// number of matches.
	List(ctx context.Context, f domain.ClaimFilter) ([]domain.Claim, int, error)
}

// JobRegistry returns authoritative job data. Implementations should
// classify their failures as domain.ErrRegistryNoResponse,
// domain.ErrRegistryTimeout or domain.ErrJobNotRegistered.
type JobRegistry interface {
	JobDetails(ctx context.Context, jobID string) (domain.JobDetails, error)
}

// EventPublisher receives claim transitions.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.ClaimEvent) error
}

// Event types.
const (
	EventClaimed          = "claim.started"
	EventPaused           = "claim.paused"
	EventResumed          = "claim.resumed"
	EventCancelled        = "claim.cancelled"
	EventCompleted        = "claim.completed"
	EventFileSetAttached  = "fileset.attached"
	EventFileSetProcessed = "fileset.processed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.ClaimEvent) error { return nil }
