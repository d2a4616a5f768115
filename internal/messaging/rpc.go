package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/jobregistry"
	"github.com/JonMunkholm/detailing/internal/logging"
)

// JobRegistry asks the jobs service for job data with a request/reply
// exchange over RabbitMQ. Replies arrive on a private, auto-deleted queue and
// are matched by correlation id.
type JobRegistry struct {
	client     *Client
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewJobRegistry creates an RPC registry publishing requests to exchange
// with routingKey. A zero timeout leaves the bound to the caller's context.
func NewJobRegistry(c *Client, exchange, routingKey string, timeout time.Duration) *JobRegistry {
	return &JobRegistry{client: c, exchange: exchange, routingKey: routingKey, timeout: timeout}
}

func (r *JobRegistry) JobDetails(ctx context.Context, jobID string) (domain.JobDetails, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	logger := logging.WithFields(ctx, "job_id", jobID)

	ch, err := r.client.Channel()
	if err != nil {
		logger.Warn("job registry unavailable", "error", err)
		return domain.JobDetails{}, fmt.Errorf("job %s: %v: %w", jobID, err, domain.ErrRegistryNoResponse)
	}
	defer ch.Close()

	replies, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return domain.JobDetails{}, fmt.Errorf("declare reply queue: %v: %w", err, domain.ErrRegistryNoResponse)
	}

	deliveries, err := ch.Consume(replies.Name, "", true, true, false, false, nil)
	if err != nil {
		return domain.JobDetails{}, fmt.Errorf("consume replies: %v: %w", err, domain.ErrRegistryNoResponse)
	}

	body, err := json.Marshal(jobregistry.Request{JobID: jobID})
	if err != nil {
		return domain.JobDetails{}, fmt.Errorf("encode request: %w", err)
	}

	corrID := uuid.NewString()
	err = ch.Publish(r.exchange, r.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       replies.Name,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		logger.Warn("job registry request not sent", "error", err)
		return domain.JobDetails{}, fmt.Errorf("publish request: %v: %w", err, domain.ErrRegistryNoResponse)
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Warn("job registry timed out")
				return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrRegistryTimeout)
			}
			return domain.JobDetails{}, ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("job registry reply channel closed")
				return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrRegistryNoResponse)
			}
			if d.CorrelationId != corrID {
				continue
			}
			return decodeReply(jobID, d.Body)
		}
	}
}

// decodeReply turns a reply body into job details. An empty or null reply
// means the jobs service has no such job.
func decodeReply(jobID string, body []byte) (domain.JobDetails, error) {
	if len(body) == 0 || string(body) == "null" {
		return domain.JobDetails{}, fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotRegistered)
	}
	var resp jobregistry.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.JobDetails{}, fmt.Errorf("decode reply for job %s: %v: %w", jobID, err, domain.ErrRegistryNoResponse)
	}
	return resp.ToDetails(), nil
}
