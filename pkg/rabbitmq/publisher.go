package rabbitmq

import (
	"context"
	"strconv"
	"time"

	"NotifyRelay/pkg/retry"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в указанный exchange.
type Publisher struct {
	client      *RabbitClient
	exchange    string
	contentType string
}

// PublishOption опция публикации сообщения.
type PublishOption func(*amqp091.Publishing)

// WithExpiration устанавливает TTL сообщения (per-message TTL в миллисекундах).
func WithExpiration(ttl time.Duration) PublishOption {
	return func(p *amqp091.Publishing) {
		if ttl > 0 {
			p.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}
}

// NewPublisher создает новый экземпляр Publisher.
func NewPublisher(client *RabbitClient, exchange, contentType string) *Publisher {
	return &Publisher{client: client, exchange: exchange, contentType: contentType}
}

// Publish публикует сообщение с повторами по стратегии клиента.
func (p *Publisher) Publish(ctx context.Context, body []byte, routingKey string, opts ...PublishOption) error {
	msg := amqp091.Publishing{
		ContentType:  p.contentType,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	for _, opt := range opts {
		opt(&msg)
	}

	publish := func() error {
		ch, err := p.client.channel()
		if err != nil {
			return err
		}
		return ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	return retry.Do(publish, p.client.config.PublishRetry)
}
