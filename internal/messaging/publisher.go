package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/JonMunkholm/detailing/internal/domain"
)

// Publisher sends claim events to a topic exchange as persistent JSON
// messages. The event type travels in the "event" header.
type Publisher struct {
	client     *Client
	exchange   string
	routingKey string

	mu sync.Mutex
	ch Channel
}

// NewPublisher declares exchange and returns a publisher bound to it.
func NewPublisher(c *Client, exchange, routingKey string) (*Publisher, error) {
	p := &Publisher{client: c, exchange: exchange, routingKey: routingKey}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns the publishing channel, reopening it after a failure.
// Callers hold p.mu, except NewPublisher.
func (p *Publisher) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, err := p.client.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) Publish(ctx context.Context, e domain.ClaimEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
		Headers:      amqp.Table{"event": e.Type},
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    e.At,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		ch.Close()
		p.ch = nil
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close closes the publishing channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
