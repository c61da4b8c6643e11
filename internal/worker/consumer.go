package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"NotifyRelay/internal/domain"
	"NotifyRelay/pkg/rabbitmq"
	"NotifyRelay/pkg/retry"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/zlog"
)

// Engine контракт движка отправки для воркера.
type Engine interface {
	Dispatch(ctx context.Context, n *domain.Notification, override ...domain.Channel) (bool, error)
}

// Consumer читает задачи отправки из очереди и запускает движок.
// Доставка задач at-least-once: повторный запуск той же задачи
// безопасен благодаря блокировке статуса в движке.
type Consumer struct {
	service       domain.NotificationService
	publisher     domain.MessageQueuePublisher
	engine        Engine
	rabbitClient  *rabbitmq.RabbitClient
	retryStrategy retry.Strategy
}

func NewConsumer(service domain.NotificationService, publisher domain.MessageQueuePublisher,
	engine Engine, client *rabbitmq.RabbitClient, strategy retry.Strategy) (*Consumer, error) {
	return &Consumer{
		service:       service,
		publisher:     publisher,
		engine:        engine,
		rabbitClient:  client,
		retryStrategy: strategy,
	}, nil
}

func (c *Consumer) Start(ctx context.Context, queueName, exchange string, workerNum int, prefetchCount int) {
	queueArgs := amqp091.Table{
		"x-dead-letter-exchange":    "dlx",              // exchange для DLQ
		"x-dead-letter-routing-key": queueName + ".dlq", // routing key для DLQ
	}
	if workerNum <= 0 {
		workerNum = 1
	}
	if prefetchCount <= 0 {
		prefetchCount = 1
	}

	// Очередь для отбракованных задач, чтобы dead-lettering их не терял
	if err := c.rabbitClient.DeclareQueue(queueName+".dlq", "dlx", queueName+".dlq",
		true, false, false, nil); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to declare dead letter queue")
		return
	}

	consumer := rabbitmq.NewConsumer(c.rabbitClient, rabbitmq.ConsumerConfig{
		Queue:         queueName,
		Exchange:      exchange,
		RoutingKey:    queueName,
		Args:          queueArgs,
		Workers:       workerNum,
		PrefetchCount: prefetchCount,
	}, c.consumerHandler)

	if err := consumer.Start(ctx); err != nil {
		zlog.Logger.Error().Err(err).Msg("consumer stopped with error")
	}
}

func (c *Consumer) consumerHandler(ctx context.Context, msg amqp091.Delivery) error {
	return c.process(ctx, msg.Body)
}

// process обрабатывает одну задачу отправки.
func (c *Consumer) process(ctx context.Context, body []byte) error {
	zlog.Logger.Debug().Str("body", string(body)).Msg("start dispatch job")
	j := domain.Job{}
	if err := json.Unmarshal(body, &j); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to unmarshal job body")
		return err
	}

	id, err := uuid.Parse(j.NotificationID)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to parse notification id")
		return err
	}

	n, err := c.service.GetNotificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			zlog.Logger.Warn().Msgf("notification %s not found, dropping job", id)
			return nil
		}
		zlog.Logger.Error().Err(err).Msg("failed to get notification")
		return err
	}

	if n.Status == domain.StatusSent {
		zlog.Logger.Debug().Msgf("notification %s already sent, dropping job", id)
		return nil
	}

	// Задача могла прийти раньше срока, откладываем на остаток времени
	if delay := time.Until(n.ScheduledAt); delay > time.Second {
		zlog.Logger.Debug().Msgf("notification %s not due yet, requeue in %v", id, delay)
		return c.publisher.Publish(ctx, id, delay)
	}

	dispatchOnce := func() error {
		_, derr := c.engine.Dispatch(ctx, n)
		if derr == nil {
			return nil
		}
		// Параллельная или уже завершенная отправка не повторяется
		if errors.Is(derr, domain.ErrDispatchInProgress) ||
			errors.Is(derr, domain.ErrAlreadySent) ||
			errors.Is(derr, domain.ErrNotFound) {
			return nil
		}
		if errInc := c.service.IncRetryCount(ctx, n); errInc != nil {
			zlog.Logger.Error().Err(errInc).Msg("failed to increment retry count")
		}
		// Снимаем захват, иначе следующий заход отклонится по статусу
		// in_progress и повтор никогда не дойдет до адаптеров
		if errReset := c.service.UpdateNotification(ctx, n,
			domain.WithStatus(domain.StatusPending)); errReset != nil {
			zlog.Logger.Error().Err(errReset).Msg("failed to release claimed notification")
		}
		return derr
	}

	if err := retry.Do(dispatchOnce, c.retryStrategy); err != nil {
		zlog.Logger.Error().Err(err).Msgf(
			"dispatch of %s abandoned after %d attempts", id, c.retryStrategy.Attempts)
		return err
	}
	return nil
}
