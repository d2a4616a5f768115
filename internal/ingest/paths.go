package ingest

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// TimestampLayout has millisecond resolution so repeated uploads for the
// same job land in distinct directories.
const TimestampLayout = "02-01-2006_15.04.05.000"

const missingPart = "missing"

// Target identifies the claim an archive is ingested for.
type Target struct {
	JobID      string
	JobNumber  int
	ClientID   string
	ClientName string
}

// ArchiveDir builds {clientId}_{clientName}/{jobNumber}/{jobId}_{timestamp}.
func ArchiveDir(t Target, at time.Time) string {
	client := sanitize(t.ClientID) + "_" + sanitize(t.ClientName)
	job := sanitize(t.JobID) + "_" + at.UTC().Format(TimestampLayout)
	return path.Join(client, strconv.Itoa(t.JobNumber), job)
}

// sanitize keeps letters, digits, dots and dashes. Anything else becomes an
// underscore and runs are collapsed.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return missingPart
	}

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}

	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return missingPart
	}
	return out
}
