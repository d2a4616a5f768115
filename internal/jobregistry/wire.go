// Package jobregistry fetches authoritative job data from the job registry
// over HTTP.
package jobregistry

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Party is a client or engineer as the registry describes it.
type Party struct {
	UUID        flexString `json:"uuid"`
	CompanyName string     `json:"companyName"`
}

// Response is the job payload served by the registry. The same shape is
// returned over the AMQP RPC transport.
type Response struct {
	JobID     string  `json:"jobId"`
	JobNumber flexInt `json:"jobNumber"`
	Client    *Party  `json:"client"`
	Engineer  *Party  `json:"engineer"`
}

// ToDetails converts the payload into the fields merged onto a claim.
// Missing parties leave their fields blank.
func (r Response) ToDetails() domain.JobDetails {
	d := domain.JobDetails{JobNumber: int(r.JobNumber)}
	if r.Client != nil {
		d.ClientID = string(r.Client.UUID)
		d.ClientName = r.Client.CompanyName
	}
	if r.Engineer != nil {
		d.EngineerID = string(r.Engineer.UUID)
		d.EngineerName = r.Engineer.CompanyName
	}
	return d
}

// Request is the RPC packet asking for one job.
type Request struct {
	JobID string `json:"jobId"`
}

// flexString accepts ids sent as JSON strings or numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt accepts job numbers sent as JSON numbers or numeric strings.
// Blank or null is zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if raw == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}
