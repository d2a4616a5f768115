package domain

import (
	"fmt"
	"strings"
	"time"
)

// ClaimKey is the compound identity of a claim.
type ClaimKey struct {
	JobID     string    `json:"jobId"`
	Username  string    `json:"username"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// Compare orders keys by job id, then username, then claim instant.
// It returns -1, 0 or +1.
func (k ClaimKey) Compare(o ClaimKey) int {
	if c := strings.Compare(k.JobID, o.JobID); c != 0 {
		return c
	}
	if c := strings.Compare(k.Username, o.Username); c != 0 {
		return c
	}
	return k.ClaimedAt.Compare(o.ClaimedAt)
}

// String renders the key in a stable form usable as a map key.
func (k ClaimKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.JobID, k.Username, FormatClaimedAt(k.ClaimedAt))
}

// FormatClaimedAt renders a claim instant the way it appears in URLs.
func FormatClaimedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseClaimedAt parses a claim instant from its URL form.
func ParseClaimedAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid claim timestamp %q: %w", s, err)
	}
	return ClaimInstant(t), nil
}

// ClaimInstant normalises t to the precision claims are stored with.
func ClaimInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
