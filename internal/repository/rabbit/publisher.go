package rabbit

import (
	"context"
	"time"

	"NotifyRelay/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

// minTTL нижняя граница задержки сообщения. Сообщение без срока жизни
// никогда не уходит в DLX, а его очередь удаляется по x-expires.
const minTTL = 2 * time.Second

// Publisher структура для публикации задач отправки в RabbitMQ.
type Publisher struct {
	client    *rabbitmq.RabbitClient
	publisher *rabbitmq.Publisher
	dlqName   string
	exchange  string
}

// NewPublisher создает новый экземпляр Publisher.
func NewPublisher(client *rabbitmq.RabbitClient, exchange, contentType, dlqName string) *Publisher {
	pub := rabbitmq.NewPublisher(client, exchange, contentType)
	return &Publisher{publisher: pub, client: client, dlqName: dlqName, exchange: exchange}
}

// Publish публикует задачу отправки в очередь с указанным TTL.
// Для каждого уведомления объявляется собственная очередь с TTL:
// по истечении сообщение уходит через DLX в рабочую очередь воркеров.
func (r *Publisher) Publish(ctx context.Context, id uuid.UUID, ttl time.Duration) error {
	if ttl < minTTL {
		ttl = minTTL
	}
	exp := ttl + 2*time.Second
	queueArgs := amqp091.Table{
		"x-dead-letter-exchange":    r.exchange, // exchange для DLQ
		"x-dead-letter-routing-key": r.dlqName,  // routing key для DLQ
		"x-expires":                 exp.Milliseconds(),
	}
	queueName := "queue:" + id.String()
	err := r.client.DeclareQueue(
		queueName,
		r.exchange,
		id.String(),
		false,
		true,
		false,
		queueArgs,
	)
	if err != nil {
		return err
	}
	body := []byte(`{"notification_id":"` + id.String() + `"}`)

	err = r.publisher.Publish(ctx, body, id.String(), rabbitmq.WithExpiration(ttl))
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to publish notification job")
		return err
	}

	return nil
}
