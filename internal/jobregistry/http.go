package jobregistry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/logging"
)

// HTTPClient looks jobs up with GET {base}/jobs/{jobId}.
type HTTPClient struct {
	baseURL string
	http    *resty.Client
}

// NewHTTPClient creates a client for the registry at baseURL. Each request
// is bounded by timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// JobDetails fetches the registry's data for jobID.
func (c *HTTPClient) JobDetails(ctx context.Context, jobID string) (domain.JobDetails, error) {
	var resp Response
	r, err := c.http.R().
		SetContext(ctx).
		SetResult(&resp).
		Get(c.baseURL + "/jobs/" + url.PathEscape(jobID))
	if err != nil {
		logging.WithFields(ctx, "job_id", jobID).Warn("job registry request failed", "error", err)
		if isTimeout(err) {
			return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrRegistryTimeout)
		}
		return domain.JobDetails{}, fmt.Errorf("job %s: %v: %w", jobID, err, domain.ErrRegistryNoResponse)
	}

	switch {
	case r.StatusCode() == http.StatusNotFound:
		return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotRegistered)
	case r.StatusCode() == http.StatusGatewayTimeout:
		return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrRegistryTimeout)
	case r.IsError():
		logging.WithFields(ctx, "job_id", jobID).Warn("job registry returned an error",
			"status", r.Status(),
			"body", r.String(),
		)
		return domain.JobDetails{}, fmt.Errorf("job %s: registry %s: %w", jobID, r.Status(), domain.ErrRegistryNoResponse)
	}

	return resp.ToDetails(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
