package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"NotifyRelay/pkg/retry"
	"github.com/rabbitmq/amqp091-go"
)

// обертка над amqp091-go для удобства использования.

// ClientConfig конфигурация подключения к RabbitMQ.
type ClientConfig struct {
	URL            string
	ConnectionName string
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
	PublishRetry   retry.Strategy
}

// RabbitClient клиент RabbitMQ с общим соединением.
type RabbitClient struct {
	config ClientConfig

	mu   sync.Mutex
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

// NewClient создает клиент и устанавливает соединение.
func NewClient(cfg ClientConfig) (*RabbitClient, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 5 * time.Second
	}

	c := &RabbitClient{config: cfg}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect устанавливает соединение и открывает канал.
func (c *RabbitClient) connect() error {
	props := amqp091.Table{}
	if c.config.ConnectionName != "" {
		props["connection_name"] = c.config.ConnectionName
	}

	conn, err := amqp091.DialConfig(c.config.URL, amqp091.Config{
		Heartbeat:  c.config.Heartbeat,
		Properties: props,
		Dial:       amqp091.DefaultDial(c.config.ConnectTimeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel failed: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// channel возвращает рабочий канал, восстанавливая соединение при обрыве.
func (c *RabbitClient) channel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connect(); err != nil {
			return nil, err
		}
	}
	if c.ch == nil || c.ch.IsClosed() {
		ch, err := c.conn.Channel()
		if err != nil {
			return nil, err
		}
		c.ch = ch
	}
	return c.ch, nil
}

// Ping проверяет живость соединения.
func (c *RabbitClient) Ping() error {
	_, err := c.channel()
	return err
}

// DeclareQueue объявляет exchange, очередь и привязку между ними.
func (c *RabbitClient) DeclareQueue(name, exchange, routingKey string,
	durable, autoDelete, exclusive bool, args amqp091.Table) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(name, durable, autoDelete, exclusive, false, args); err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	if err := ch.QueueBind(name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", name, err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (c *RabbitClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
