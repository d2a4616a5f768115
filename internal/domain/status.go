package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusUnverified Status = "UNVERIFIED"
	StatusStarted    Status = "STARTED"
	StatusPaused     Status = "PAUSED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ActiveStatuses are the statuses of a claim that still holds its job.
var ActiveStatuses = []Status{StatusUnverified, StatusStarted, StatusPaused}

// IsActive reports whether a claim in this status still holds its job.
func (s Status) IsActive() bool {
	switch s {
	case StatusUnverified, StatusStarted, StatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusUnverified, StatusStarted, StatusPaused, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
