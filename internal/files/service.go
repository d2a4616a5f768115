// Package files handles the detailing files attached to claims: archive
// submission, processing of a file set, listing and archive download.
package files

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/JonMunkholm/detailing/internal/claims"
	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/ingest"
	"github.com/JonMunkholm/detailing/internal/logging"
	"github.com/JonMunkholm/detailing/internal/processing"
)

// Ingestor turns an upload into a file set and can throw one away again.
type Ingestor interface {
	Ingest(ctx context.Context, target ingest.Target, up ingest.Upload) (domain.FileSet, error)
	Discard(fs domain.FileSet) error
}

// Processor runs a file list through the processing pipeline.
type Processor interface {
	ProcessAll(ctx context.Context, files []domain.DetailingFile) processing.BatchResult
}

// ArchiveOpener streams stored archives back.
type ArchiveOpener interface {
	Open(p domain.XPath) (io.ReadCloser, error)
}

// Service implements the detailing file operations.
type Service struct {
	claims    *claims.Service
	ingestor  Ingestor
	processor Processor
	archives  ArchiveOpener
}

// NewService wires the file operations to the claim service.
func NewService(c *claims.Service, i Ingestor, p Processor, a ArchiveOpener) *Service {
	return &Service{claims: c, ingestor: i, processor: p, archives: a}
}

// Submit ingests an archive and attaches the resulting file set to the
// caller's STARTED claim on jobID.
func (s *Service) Submit(ctx context.Context, jobID, username string, up ingest.Upload) (domain.FileSet, error) {
	claim, err := s.claims.StartedClaim(ctx, jobID, username)
	if err != nil {
		return domain.FileSet{}, err
	}

	fs, err := s.ingestor.Ingest(ctx, ingest.Target{
		JobID:      claim.JobID,
		JobNumber:  claim.JobNumber,
		ClientID:   claim.ClientID,
		ClientName: claim.ClientName,
	}, up)
	if err != nil {
		return domain.FileSet{}, err
	}

	if _, err := s.claims.AttachFileSet(ctx, jobID, username, fs); err != nil {
		if derr := s.ingestor.Discard(fs); derr != nil {
			logging.FromContext(ctx).Error("failed to discard unattached file set",
				"job_id", jobID, "file_set_id", fs.ID, "error", derr)
		}
		return domain.FileSet{}, err
	}
	return fs, nil
}

// FileFailure explains why one file stayed unprocessed.
type FileFailure struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// ProcessResult is the outcome of processing a file set.
type ProcessResult struct {
	FileSet   domain.FileSet `json:"fileSet"`
	Attempted int            `json:"attempted"`
	Processed int            `json:"processed"`
	Failures  []FileFailure  `json:"failures"`
}

// ProcessFileSet processes every unprocessed file of one file set on the
// caller's STARTED claim and writes the updated list back in one update.
// Individual file failures are reported in the result, not as an error.
func (s *Service) ProcessFileSet(ctx context.Context, jobID, username, fileSetID string) (ProcessResult, error) {
	claim, err := s.claims.StartedClaim(ctx, jobID, username)
	if err != nil {
		return ProcessResult{}, err
	}

	fs, ok := claim.FileSet(fileSetID)
	if !ok {
		return ProcessResult{}, fmt.Errorf("file set %s on job %s: %w", fileSetID, jobID, domain.ErrFileSetNotFound)
	}

	batch := s.processor.ProcessAll(ctx, fs.Files)

	saved, err := s.claims.ReplaceFileSetFiles(ctx, claim, fileSetID, batch.Files)
	if err != nil {
		return ProcessResult{}, err
	}
	updated, _ := saved.FileSet(fileSetID)

	result := ProcessResult{
		FileSet:   updated,
		Attempted: batch.Attempted,
		Processed: updated.ProcessedCount(),
		Failures:  []FileFailure{},
	}
	for _, f := range batch.Files {
		if err, failed := batch.Errors[f.ID]; failed {
			result.Failures = append(result.Failures, FileFailure{
				FileID:   f.ID,
				Filename: f.Filename,
				Code:     domain.CodeOf(err),
				Message:  err.Error(),
			})
		}
	}

	logging.WithFields(ctx, "job_id", jobID, "file_set_id", fileSetID).Info("file set processed",
		"attempted", result.Attempted,
		"processed", result.Processed,
		"failed", len(result.Failures),
	)
	return result, nil
}

// FileSetsForClaim lists the file sets on the caller's active claim,
// oldest first.
func (s *Service) FileSetsForClaim(ctx context.Context, jobID, username string) ([]domain.FileSet, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return nil, err
	}
	claim, err := s.claims.ActiveForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !claim.IsOwnedBy(username) {
		return nil, fmt.Errorf("job %s held by %s: %w", jobID, claim.ClaimedByUsername, domain.ErrNotOwner)
	}
	return claim.SortedFileSets(), nil
}

// JobFileSet is a file set together with the claim it belongs to.
type JobFileSet struct {
	Claim   domain.ClaimKey `json:"claim"`
	Status  domain.Status   `json:"status"`
	FileSet domain.FileSet  `json:"fileSet"`
}

// FileSetsForJob lists the file sets of every claim ever made for jobID,
// in claim order.
func (s *Service) FileSetsForJob(ctx context.Context, jobID string) ([]JobFileSet, error) {
	history, err := s.claims.History(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := []JobFileSet{}
	for _, c := range history {
		for _, fs := range c.SortedFileSets() {
			out = append(out, JobFileSet{Claim: c.Key(), Status: c.Status, FileSet: fs})
		}
	}
	return out, nil
}

// OpenArchive streams the archive a file set was ingested from. The caller
// closes the reader.
func (s *Service) OpenArchive(ctx context.Context, key domain.ClaimKey, fileSetID string) (io.ReadCloser, string, error) {
	claim, err := s.claims.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}

	fs, ok := claim.FileSet(fileSetID)
	if !ok {
		return nil, "", fmt.Errorf("file set %s on %s: %w", fileSetID, key, domain.ErrFileSetNotFound)
	}

	rc, err := s.archives.Open(fs.ArchivePath)
	if err != nil {
		return nil, "", err
	}
	return rc, path.Base(fs.ArchivePath.Path), nil
}
