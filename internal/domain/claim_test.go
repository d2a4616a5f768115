package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 5, 9, 30, 15, 123456789, time.UTC)

func newTestClaim(t *testing.T, status Status) Claim {
	t.Helper()
	c, err := NewClaim("JOB-0001", "alice", testNow)
	if err != nil {
		t.Fatalf("NewClaim() error = %v", err)
	}
	c.JobNumber = 4411
	c.Status = status
	return c
}

func withFileSet(t *testing.T, c Claim) Claim {
	t.Helper()
	fs := NewFileSet("fs-1", "", RelativePath("a/b/c.zip"), nil, testNow)
	c, err := c.AttachFileSet(fs)
	if err != nil {
		t.Fatalf("AttachFileSet() error = %v", err)
	}
	return c
}

func TestNewClaim(t *testing.T) {
	c, err := NewClaim("JOB-0001", "alice", testNow)
	if err != nil {
		t.Fatalf("NewClaim() error = %v", err)
	}
	if c.Status != StatusUnverified {
		t.Errorf("Status = %s, want %s", c.Status, StatusUnverified)
	}
	if !c.ClaimedAt.Equal(testNow.Truncate(time.Microsecond)) {
		t.Errorf("ClaimedAt = %v, want microsecond precision of %v", c.ClaimedAt, testNow)
	}
	if c.FileSets == nil {
		t.Error("FileSets should be initialised")
	}
}

func TestNewClaim_Validation(t *testing.T) {
	tests := []struct {
		name     string
		jobID    string
		username string
		want     error
	}{
		{"blank job id", "", "alice", ErrInvalidJobID},
		{"path traversal", "../etc", "alice", ErrInvalidJobID},
		{"slash", "a/b", "alice", ErrInvalidJobID},
		{"blank username", "JOB-1", "  ", ErrMissingUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClaim(tt.jobID, tt.username, testNow)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewClaim() error = %v, want %v", err, tt.want)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("KindOf() = %s, want %s", KindOf(err), KindValidation)
			}
		})
	}
}

func TestClaimTransitions(t *testing.T) {
	type transition func(Claim) (Claim, error)

	pause := func(c Claim) (Claim, error) { return c.Pause() }
	resume := func(c Claim) (Claim, error) { return c.Resume() }
	cancel := func(c Claim) (Claim, error) { return c.Cancel() }
	complete := func(c Claim) (Claim, error) { return c.Complete() }
	activate := func(c Claim) (Claim, error) { return c.Activate() }

	tests := []struct {
		name     string
		from     Status
		fileSets bool
		op       transition
		want     Status
		wantErr  error
	}{
		{"activate unverified", StatusUnverified, false, activate, StatusStarted, nil},
		{"activate started", StatusStarted, false, activate, "", ErrInvalidTransition},
		{"pause started", StatusStarted, false, pause, StatusPaused, nil},
		{"pause paused", StatusPaused, false, pause, "", ErrInvalidTransition},
		{"pause unverified", StatusUnverified, false, pause, "", ErrInvalidTransition},
		{"resume paused", StatusPaused, false, resume, StatusStarted, nil},
		{"resume started", StatusStarted, false, resume, "", ErrInvalidTransition},
		{"cancel unverified", StatusUnverified, false, cancel, StatusCancelled, nil},
		{"cancel started", StatusStarted, false, cancel, StatusCancelled, nil},
		{"cancel paused", StatusPaused, false, cancel, StatusCancelled, nil},
		{"cancel completed", StatusCompleted, true, cancel, "", ErrInvalidTransition},
		{"cancel cancelled", StatusCancelled, false, cancel, "", ErrInvalidTransition},
		{"complete started with files", StatusStarted, true, complete, StatusCompleted, nil},
		{"complete paused with files", StatusPaused, true, complete, "", ErrCantComplete},
		{"complete started without files", StatusStarted, false, complete, "", ErrCantComplete},
		{"complete paused without files", StatusPaused, false, complete, "", ErrCantComplete},
		{"complete unverified without files", StatusUnverified, false, complete, "", ErrCantComplete},
		{"complete completed without files", StatusCompleted, false, complete, "", ErrCantComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClaim(t, tt.from)
			if tt.fileSets {
				c = withFileSet(t, c)
			}

			got, err := tt.op(c)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if c.Status != tt.from {
				t.Errorf("original Status changed to %s", c.Status)
			}
		})
	}
}

func TestClaimActivate_RequiresJobNumber(t *testing.T) {
	c := newTestClaim(t, StatusUnverified)
	c.JobNumber = 0

	_, err := c.Activate()
	if !errors.Is(err, ErrUnverifiable) {
		t.Errorf("Activate() error = %v, want %v", err, ErrUnverifiable)
	}
}

func TestClaimWithJobDetails_IgnoresBlanks(t *testing.T) {
	c := newTestClaim(t, StatusUnverified)
	c.ClientID = "C1"
	c.ClientName = "Acme"
	c.EngineerName = "Bob"

	got := c.WithJobDetails(JobDetails{
		JobNumber:    0,
		ClientID:     "  ",
		ClientName:   "Acme Homes",
		EngineerID:   "E9",
		EngineerName: "",
	})

	if got.JobNumber != 4411 {
		t.Errorf("JobNumber = %d, want 4411", got.JobNumber)
	}
	if got.ClientID != "C1" {
		t.Errorf("ClientID = %q, want %q", got.ClientID, "C1")
	}
	if got.ClientName != "Acme Homes" {
		t.Errorf("ClientName = %q, want %q", got.ClientName, "Acme Homes")
	}
	if got.EngineerID != "E9" {
		t.Errorf("EngineerID = %q, want %q", got.EngineerID, "E9")
	}
	if got.EngineerName != "Bob" {
		t.Errorf("EngineerName = %q, want %q", got.EngineerName, "Bob")
	}
	if got.Key() != c.Key() {
		t.Errorf("Key() = %v, want %v", got.Key(), c.Key())
	}
}

func TestClaimAttachFileSet(t *testing.T) {
	c := newTestClaim(t, StatusStarted)
	fs := NewFileSet("fs-1", "", RelativePath("x.zip"), nil, testNow)

	attached, err := c.AttachFileSet(fs)
	if err != nil {
		t.Fatalf("AttachFileSet() error = %v", err)
	}
	if len(c.FileSets) != 0 {
		t.Errorf("original claim gained %d file sets", len(c.FileSets))
	}
	if len(attached.FileSets) != 1 {
		t.Errorf("len(FileSets) = %d, want 1", len(attached.FileSets))
	}

	_, err = attached.AttachFileSet(fs)
	if !errors.Is(err, ErrDuplicateFileSet) {
		t.Errorf("second AttachFileSet() error = %v, want %v", err, ErrDuplicateFileSet)
	}
	if KindOf(err) != KindInvariant {
		t.Errorf("KindOf() = %s, want %s", KindOf(err), KindInvariant)
	}
}

func TestClaimWithFileSetFiles(t *testing.T) {
	c := withFileSet(t, newTestClaim(t, StatusStarted))
	files := []DetailingFile{NewUnprocessedFile("f1", RelativePath("a/b.txt"), testNow)}

	got, err := c.WithFileSetFiles("fs-1", files)
	if err != nil {
		t.Fatalf("WithFileSetFiles() error = %v", err)
	}
	if n := len(got.FileSets["fs-1"].Files); n != 1 {
		t.Errorf("files = %d, want 1", n)
	}
	if n := len(c.FileSets["fs-1"].Files); n != 0 {
		t.Errorf("original files = %d, want 0", n)
	}

	files[0].Label = "mutated"
	if got.FileSets["fs-1"].Files[0].Label == "mutated" {
		t.Error("claim shares the caller's slice")
	}

	if _, err := c.WithFileSetFiles("missing", files); !errors.Is(err, ErrFileSetNotFound) {
		t.Errorf("error = %v, want %v", err, ErrFileSetNotFound)
	}
}

func TestClaimIsOwnedBy(t *testing.T) {
	c := newTestClaim(t, StatusStarted)

	tests := []struct {
		username string
		want     bool
	}{
		{"alice", true},
		{"bob", false},
		{"", false},
		{" ", false},
	}

	for _, tt := range tests {
		if got := c.IsOwnedBy(tt.username); got != tt.want {
			t.Errorf("IsOwnedBy(%q) = %v, want %v", tt.username, got, tt.want)
		}
	}
}

func TestClaimFilter(t *testing.T) {
	c := newTestClaim(t, StatusPaused)

	tests := []struct {
		name   string
		filter ClaimFilter
		want   bool
	}{
		{"empty", ClaimFilter{}, true},
		{"username match", ClaimFilter{Username: "alice"}, true},
		{"username miss", ClaimFilter{Username: "bob"}, false},
		{"status match", ClaimFilter{Statuses: ActiveStatuses}, true},
		{"status miss", ClaimFilter{Statuses: []Status{StatusStarted}}, false},
		{"job match", ClaimFilter{JobIDs: []string{"X", "JOB-0001"}}, true},
		{"job miss", ClaimFilter{JobIDs: []string{"X"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(c); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := (ClaimFilter{Page: 3, PageSize: 20}).Offset(); got != 40 {
		t.Errorf("Offset() = %d, want 40", got)
	}
}
