package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig конфигурация потребителя очереди.
type ConsumerConfig struct {
	Queue         string
	Exchange      string
	RoutingKey    string
	Args          amqp091.Table
	Workers       int
	PrefetchCount int
}

// HandlerFunc обработчик одного сообщения. Ненулевая ошибка приводит
// к nack без повторной постановки (сообщение уходит в DLQ).
type HandlerFunc func(ctx context.Context, msg amqp091.Delivery) error

// Consumer пул воркеров, читающих одну очередь.
type Consumer struct {
	client  *RabbitClient
	config  ConsumerConfig
	handler HandlerFunc
}

// NewConsumer создает новый экземпляр Consumer.
func NewConsumer(client *RabbitClient, cfg ConsumerConfig, handler HandlerFunc) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 1
	}
	return &Consumer{client: client, config: cfg, handler: handler}
}

// Start объявляет очередь и запускает воркеры, блокируется до отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.client.DeclareQueue(c.config.Queue, c.config.Exchange, c.config.RoutingKey,
		true, false, false, c.config.Args); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, c.config.Workers)

	for i := 0; i < c.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			if err := c.runWorker(ctx, workerID); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// runWorker открывает собственный канал и обрабатывает сообщения.
func (c *Consumer) runWorker(ctx context.Context, workerID int) error {
	c.client.mu.Lock()
	conn := c.client.conn
	c.client.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("worker %d: connection is closed", workerID)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("worker %d: open channel: %w", workerID, err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
		return fmt.Errorf("worker %d: set qos: %w", workerID, err)
	}

	tag := fmt.Sprintf("%s-worker-%d", c.config.Queue, workerID)
	deliveries, err := ch.Consume(c.config.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("worker %d: consume: %w", workerID, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := c.handler(ctx, msg); err != nil {
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
