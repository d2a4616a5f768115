// Package messaging talks to RabbitMQ: the job registry RPC and the claim
// event feed.
package messaging

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Client owns one broker connection and hands out channels on it.
type Client struct {
	open  func() (Channel, error)
	close func() error
}

// Dial connects to the broker at url.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return &Client{
		open: func() (Channel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		close: conn.Close,
	}, nil
}

// NewClient builds a client from a channel factory.
func NewClient(open func() (Channel, error)) *Client {
	return &Client{open: open, close: func() error { return nil }}
}

// Channel opens a new channel. The caller closes it.
func (c *Client) Channel() (Channel, error) {
	ch, err := c.open()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Close closes the connection and every channel on it.
func (c *Client) Close() error {
	return c.close()
}
