// Package domain holds the claim and detailing-file value types.
//
// Values are immutable by convention: every transition takes a Claim by
// value and returns a new one, copying the file set map before changing it,
// so a snapshot held by one caller never changes under another.
package domain

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"
)

// MaxJobIDLength bounds job ids, which become part of storage paths.
const MaxJobIDLength = 100

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// JobDetails is the authoritative job data held by the remote job registry.
type JobDetails struct {
	JobNumber    int    `json:"jobNumber"`
	ClientID     string `json:"clientId"`
	ClientName   string `json:"clientName"`
	EngineerID   string `json:"engineerId"`
	EngineerName string `json:"engineerName"`
}

// Claim is a staff member's reservation on one detailing job.
type Claim struct {
	JobID             string             `json:"jobId"`
	JobNumber         int                `json:"jobNumber"`
	ClientID          string             `json:"clientId"`
	ClientName        string             `json:"clientName"`
	EngineerID        string             `json:"engineerId"`
	EngineerName      string             `json:"engineerName"`
	ClaimedByUsername string             `json:"claimedByUsername"`
	ClaimedByStaffID  string             `json:"claimedByStaffId"`
	ClaimedAt         time.Time          `json:"claimedAt"`
	Status            Status             `json:"status"`
	FileSets          map[string]FileSet `json:"fileSets"`

	// Version increments on every persisted update. Zero means never stored.
	Version int64 `json:"version"`
}

// ValidateJobID rejects ids that are blank, too long or unsafe in a path.
func ValidateJobID(jobID string) error {
	if jobID == "" || len(jobID) > MaxJobIDLength || !jobIDPattern.MatchString(jobID) {
		return fmt.Errorf("%q: %w", jobID, ErrInvalidJobID)
	}
	return nil
}

// ValidateUsername rejects blank usernames.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrMissingUsername
	}
	return nil
}

// NewClaim creates an UNVERIFIED claim for jobID owned by username.
func NewClaim(jobID, username string, now time.Time) (Claim, error) {
	if err := ValidateJobID(jobID); err != nil {
		return Claim{}, err
	}
	if err := ValidateUsername(username); err != nil {
		return Claim{}, err
	}
	return Claim{
		JobID:             jobID,
		ClaimedByUsername: username,
		ClaimedAt:         ClaimInstant(now),
		Status:            StatusUnverified,
		FileSets:          map[string]FileSet{},
	}, nil
}

// Key returns the compound identity of the claim.
func (c Claim) Key() ClaimKey {
	return ClaimKey{JobID: c.JobID, Username: c.ClaimedByUsername, ClaimedAt: c.ClaimedAt}
}

// IsOwnedBy reports whether username is the non-blank owner of the claim.
func (c Claim) IsOwnedBy(username string) bool {
	return strings.TrimSpace(username) != "" && c.ClaimedByUsername == username
}

// Clone returns a copy that shares no map with c.
func (c Claim) Clone() Claim {
	sets := make(map[string]FileSet, len(c.FileSets))
	for id, fs := range c.FileSets {
		sets[id] = fs.WithFiles(fs.Files)
	}
	c.FileSets = sets
	return c
}

// WithJobDetails merges registry data into the claim. A field is only
// overwritten by a non-blank string or a positive job number; identity
// fields are never touched.
func (c Claim) WithJobDetails(d JobDetails) Claim {
	c = c.Clone()
	if d.JobNumber > 0 {
		c.JobNumber = d.JobNumber
	}
	c.ClientID = mergeString(c.ClientID, d.ClientID)
	c.ClientName = mergeString(c.ClientName, d.ClientName)
	c.EngineerID = mergeString(c.EngineerID, d.EngineerID)
	c.EngineerName = mergeString(c.EngineerName, d.EngineerName)
	return c
}

func mergeString(current, incoming string) string {
	if strings.TrimSpace(incoming) == "" {
		return current
	}
	return incoming
}

// Activate moves an UNVERIFIED claim to STARTED once it carries a job number.
func (c Claim) Activate() (Claim, error) {
	if c.Status != StatusUnverified {
		return Claim{}, fmt.Errorf("activate from %s: %w", c.Status, ErrInvalidTransition)
	}
	if c.JobNumber <= 0 {
		return Claim{}, fmt.Errorf("job %s has no job number: %w", c.JobID, ErrUnverifiable)
	}
	return c.withStatus(StatusStarted), nil
}

// Pause moves a STARTED claim to PAUSED.
func (c Claim) Pause() (Claim, error) {
	if c.Status != StatusStarted {
		return Claim{}, fmt.Errorf("pause from %s: %w", c.Status, ErrInvalidTransition)
	}
	return c.withStatus(StatusPaused), nil
}

// Resume moves a PAUSED claim back to STARTED.
func (c Claim) Resume() (Claim, error) {
	if c.Status != StatusPaused {
		return Claim{}, fmt.Errorf("resume from %s: %w", c.Status, ErrInvalidTransition)
	}
	return c.withStatus(StatusStarted), nil
}

// Cancel ends an active claim.
func (c Claim) Cancel() (Claim, error) {
	if !c.Status.IsActive() {
		return Claim{}, fmt.Errorf("cancel from %s: %w", c.Status, ErrInvalidTransition)
	}
	return c.withStatus(StatusCancelled), nil
}

// Complete ends a STARTED claim that has at least one file set.
func (c Claim) Complete() (Claim, error) {
	if len(c.FileSets) == 0 {
		return Claim{}, fmt.Errorf("job %s has no file sets: %w", c.JobID, ErrCantComplete)
	}
	if c.Status != StatusStarted {
		return Claim{}, fmt.Errorf("complete from %s: %w", c.Status, ErrCantComplete)
	}
	return c.withStatus(StatusCompleted), nil
}

// AttachFileSet adds fs to the claim. Ids are unique within a claim.
func (c Claim) AttachFileSet(fs FileSet) (Claim, error) {
	if _, exists := c.FileSets[fs.ID]; exists {
		return Claim{}, fmt.Errorf("file set %s on job %s: %w", fs.ID, c.JobID, ErrDuplicateFileSet)
	}
	c = c.Clone()
	c.FileSets[fs.ID] = fs.WithFiles(fs.Files)
	return c, nil
}

// WithFileSetFiles replaces the file list of one attached file set.
func (c Claim) WithFileSetFiles(fileSetID string, files []DetailingFile) (Claim, error) {
	fs, ok := c.FileSets[fileSetID]
	if !ok {
		return Claim{}, fmt.Errorf("file set %s on job %s: %w", fileSetID, c.JobID, ErrFileSetNotFound)
	}
	c = c.Clone()
	c.FileSets[fileSetID] = fs.WithFiles(files)
	return c, nil
}

// FileSet returns the attached file set with the given id.
func (c Claim) FileSet(id string) (FileSet, bool) {
	fs, ok := c.FileSets[id]
	return fs, ok
}

// SortedFileSets returns the attached file sets oldest first.
func (c Claim) SortedFileSets() []FileSet {
	out := make([]FileSet, 0, len(c.FileSets))
	for _, fs := range c.FileSets {
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c Claim) withStatus(s Status) Claim {
	c = c.Clone()
	c.Status = s
	return c
}

// ClaimFilter narrows a claim listing. Zero values match everything.
type ClaimFilter struct {
	Statuses []Status
	Username string
	JobIDs   []string
	Page     int // 1-based
	PageSize int // 0 means unpaginated
}

// Offset returns the number of rows skipped before the requested page.
func (f ClaimFilter) Offset() int {
	if f.PageSize <= 0 || f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Matches reports whether c passes the status, username and job filters.
func (f ClaimFilter) Matches(c Claim) bool {
	if f.Username != "" && c.ClaimedByUsername != f.Username {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status) {
		return false
	}
	if len(f.JobIDs) > 0 && !slices.Contains(f.JobIDs, c.JobID) {
		return false
	}
	return true
}

// ClaimEvent records a successful claim transition for downstream consumers.
type ClaimEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	JobNumber int       `json:"jobNumber,omitempty"`
	Username  string    `json:"username"`
	Status    Status    `json:"status"`
	FileSetID string    `json:"fileSetId,omitempty"`
	At        time.Time `json:"at"`
}

// NewClaimEvent builds an event describing c after a transition of type t.
func NewClaimEvent(t string, c Claim, at time.Time) ClaimEvent {
	return ClaimEvent{
		Type:      t,
		JobID:     c.JobID,
		JobNumber: c.JobNumber,
		Username:  c.ClaimedByUsername,
		Status:    c.Status,
		At:        at,
	}
}
