// Package claims owns the claim lifecycle: who holds a detailing job, and
// which transitions they may make on it.
//
// The Service reads the current claim, applies a pure transition from the
// domain package and writes the result back with a version check. A
// concurrent writer therefore fails with domain.ErrStaleClaim instead of
// being silently overwritten.
package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
)

// DefaultRegistryTimeout bounds a registry lookup when none is configured.
const DefaultRegistryTimeout = 5 * time.Second

// Service implements the claim operations.
type Service struct {
	store           Store
	registry        JobRegistry
	events          EventPublisher
	registryTimeout time.Duration
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes every successful transition to p.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithRegistryTimeout bounds each registry lookup.
func WithRegistryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.registryTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a claim service.
func NewService(store Store, registry JobRegistry, opts ...Option) *Service {
	s := &Service{
		store:           store,
		registry:        registry,
		events:          nopPublisher{},
		registryTimeout: DefaultRegistryTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claim reserves jobID for username and activates the claim with data
// from the job registry.
//
// An UNVERIFIED claim the caller already holds is verified again; any other
// active claim on the job fails with domain.ErrAlreadyClaimed. When the
// registry fails the claim stays UNVERIFIED and the registry error is
// returned, so claiming again retries the verification.
func (s *Service) Claim(ctx context.Context, jobID, username string) (domain.Claim, error) {
	if err := validate(jobID, username); err != nil {
		return domain.Claim{}, err
	}
	logger := logging.WithFields(ctx, "job_id", jobID, "username", username)

	claim, err := s.store.FindActive(ctx, jobID)
	switch {
	case err == nil:
		if !claim.IsOwnedBy(username) || claim.Status != domain.StatusUnverified {
			return domain.Claim{}, fmt.Errorf("job %s held by %s (%s): %w",
				jobID, claim.ClaimedByUsername, claim.Status, domain.ErrAlreadyClaimed)
		}
		logger.Info("re-verifying unverified claim")

	case errors.Is(err, domain.ErrClaimNotFound):
		fresh, err := domain.NewClaim(jobID, username, s.now())
		if err != nil {
			return domain.Claim{}, err
		}
		claim, err = s.store.Insert(ctx, fresh)
		if err != nil {
			return domain.Claim{}, fmt.Errorf("insert claim: %w", err)
		}

	default:
		return domain.Claim{}, fmt.Errorf("find active claim: %w", err)
	}

	details, err := s.lookupJob(ctx, jobID)
	if err != nil {
		logger.Warn("job registry lookup failed", "code", domain.CodeOf(err), "error", err)
		return domain.Claim{}, err
	}

	started, err := claim.WithJobDetails(details).Activate()
	if err != nil {
		return domain.Claim{}, err
	}

	saved, err := s.store.Update(ctx, started)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("save claim: %w", err)
	}

	logger.Info("claim started", "job_number", saved.JobNumber)
	s.publish(ctx, EventClaimed, saved, "")
	return saved, nil
}

// lookupJob calls the registry under the configured timeout and classifies
// its failure.
func (s *Service) lookupJob(ctx context.Context, jobID string) (domain.JobDetails, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.registryTimeout)
	defer cancel()

	details, err := s.registry.JobDetails(lookupCtx, jobID)
	if err == nil {
		return details, nil
	}

	switch {
	case domain.KindOf(err) != domain.KindInternal:
		return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded):
		return domain.JobDetails{}, fmt.Errorf("job %s after %s: %w", jobID, s.registryTimeout, domain.ErrRegistryTimeout)
	case errors.Is(err, context.Canceled):
		return domain.JobDetails{}, err
	default:
		return domain.JobDetails{}, fmt.Errorf("job %s: %w: %v", jobID, domain.ErrRegistryNoResponse, err)
	}
}

// Pause moves the caller's STARTED claim to PAUSED.
func (s *Service) Pause(ctx context.Context, jobID, username string) (domain.Claim, error) {
	claim, err := s.ownedStarted(ctx, jobID, username)
	if err != nil {
		return domain.Claim{}, err
	}
	return s.transition(ctx, claim, EventPaused, domain.Claim.Pause)
}

// Resume moves the caller's PAUSED claim back to STARTED.
func (s *Service) Resume(ctx context.Context, jobID, username string) (domain.Claim, error) {
	if err := validate(jobID, username); err != nil {
		return domain.Claim{}, err
	}
	claim, err := s.store.FindPaused(ctx, jobID, username)
	if err != nil {
		return domain.Claim{}, s.explainMissing(ctx, jobID, username, err)
	}
	return s.transition(ctx, claim, EventResumed, domain.Claim.Resume)
}

// Cancel releases the caller's STARTED or PAUSED claim.
func (s *Service) Cancel(ctx context.Context, jobID, username string) (domain.Claim, error) {
	if err := validate(jobID, username); err != nil {
		return domain.Claim{}, err
	}
	claim, err := s.store.FindStarted(ctx, jobID, username)
	if errors.Is(err, domain.ErrClaimNotFound) {
		claim, err = s.store.FindPaused(ctx, jobID, username)
	}
	if err != nil {
		return domain.Claim{}, s.explainMissing(ctx, jobID, username, err)
	}
	return s.transition(ctx, claim, EventCancelled, domain.Claim.Cancel)
}

// Complete finishes the caller's STARTED claim. At least one file set
// must be attached. An owned claim in any other active status fails with
// domain.ErrCantComplete.
func (s *Service) Complete(ctx context.Context, jobID, username string) (domain.Claim, error) {
	if err := validate(jobID, username); err != nil {
		return domain.Claim{}, err
	}
	claim, err := s.store.FindActive(ctx, jobID)
	if err != nil {
		return domain.Claim{}, s.explainMissing(ctx, jobID, username, err)
	}
	if !claim.IsOwnedBy(username) {
		return domain.Claim{}, fmt.Errorf("job %s held by %s: %w", jobID, claim.ClaimedByUsername, domain.ErrNotOwner)
	}
	return s.transition(ctx, claim, EventCompleted, domain.Claim.Complete)
}

// AttachFileSet adds fs to the caller's STARTED claim.
func (s *Service) AttachFileSet(ctx context.Context, jobID, username string, fs domain.FileSet) (domain.Claim, error) {
	claim, err := s.ownedStarted(ctx, jobID, username)
	if err != nil {
		return domain.Claim{}, err
	}

	updated, err := claim.AttachFileSet(fs)
	if err != nil {
		logging.WithFields(ctx, "job_id", jobID, "file_set_id", fs.ID).Error("file set attach rejected", "error", err)
		return domain.Claim{}, err
	}

	saved, err := s.store.Update(ctx, updated)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("save claim: %w", err)
	}
	s.publish(ctx, EventFileSetAttached, saved, fs.ID)
	return saved, nil
}

// ReplaceFileSetFiles writes a processed file list back to the claim in
// one update.
func (s *Service) ReplaceFileSetFiles(ctx context.Context, claim domain.Claim, fileSetID string, files []domain.DetailingFile) (domain.Claim, error) {
	updated, err := claim.WithFileSetFiles(fileSetID, files)
	if err != nil {
		return domain.Claim{}, err
	}

	saved, err := s.store.Update(ctx, updated)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("save claim: %w", err)
	}
	s.publish(ctx, EventFileSetProcessed, saved, fileSetID)
	return saved, nil
}

// StartedClaim returns the caller's STARTED claim on jobID.
func (s *Service) StartedClaim(ctx context.Context, jobID, username string) (domain.Claim, error) {
	return s.ownedStarted(ctx, jobID, username)
}

func (s *Service) ownedStarted(ctx context.Context, jobID, username string) (domain.Claim, error) {
	if err := validate(jobID, username); err != nil {
		return domain.Claim{}, err
	}
	claim, err := s.store.FindStarted(ctx, jobID, username)
	if err != nil {
		return domain.Claim{}, s.explainMissing(ctx, jobID, username, err)
	}
	return claim, nil
}

// explainMissing turns a failed owner-scoped lookup into NotOwner when
// someone else holds the job, and NotFound otherwise.
func (s *Service) explainMissing(ctx context.Context, jobID, username string, lookupErr error) error {
	if !errors.Is(lookupErr, domain.ErrClaimNotFound) {
		return fmt.Errorf("find claim: %w", lookupErr)
	}

	active, err := s.store.FindActive(ctx, jobID)
	switch {
	case err == nil && !active.IsOwnedBy(username):
		return fmt.Errorf("job %s held by %s: %w", jobID, active.ClaimedByUsername, domain.ErrNotOwner)
	case err == nil:
		return fmt.Errorf("job %s is %s: %w", jobID, active.Status, domain.ErrClaimNotFound)
	case errors.Is(err, domain.ErrClaimNotFound):
		return fmt.Errorf("job %s: %w", jobID, domain.ErrClaimNotFound)
	default:
		return fmt.Errorf("find active claim: %w", err)
	}
}

func (s *Service) transition(ctx context.Context, claim domain.Claim, event string, step func(domain.Claim) (domain.Claim, error)) (domain.Claim, error) {
	next, err := step(claim)
	if err != nil {
		return domain.Claim{}, err
	}

	saved, err := s.store.Update(ctx, next)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("save claim: %w", err)
	}

	logging.WithFields(ctx, "job_id", saved.JobID, "username", saved.ClaimedByUsername).
		Info("claim transition", "event", event, "status", saved.Status)
	s.publish(ctx, event, saved, "")
	return saved, nil
}

// publish never fails the operation; a lost event is only logged.
func (s *Service) publish(ctx context.Context, eventType string, c domain.Claim, fileSetID string) {
	e := domain.NewClaimEvent(eventType, c, s.now().UTC())
	e.FileSetID = fileSetID
	if err := s.events.Publish(ctx, e); err != nil {
		logging.WithFields(ctx, "job_id", c.JobID, "event", eventType).Warn("claim event not published", "error", err)
	}
}

func validate(jobID, username string) error {
	if err := domain.ValidateJobID(jobID); err != nil {
		return err
	}
	return domain.ValidateUsername(username)
}
