package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationService интерфейс для работы с уведомлениями.
type NotificationService interface {
	// CreateNotification создает новое уведомление и ставит задачу отправки
	CreateNotification(ctx context.Context,
		params CreateNotificationParams) (*Notification, error)
	// UpdateNotification обновляет уведомление с указанными параметрами
	UpdateNotification(ctx context.Context, n *Notification, opts ...UpdateOption) error
	// GetNotificationByID получает уведомление по ID
	GetNotificationByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByOwner получает уведомления владельца, новые первыми
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Notification, error)
	// ListAttempts возвращает журнал попыток доставки, новые первыми
	ListAttempts(ctx context.Context, id uuid.UUID) ([]DeliveryAttempt, error)
	// Resend сбрасывает статус в pending и заново ставит задачу отправки
	Resend(ctx context.Context, id uuid.UUID) error
	// IncRetryCount увеличивает счетчик попыток для уведомления
	IncRetryCount(ctx context.Context, n *Notification) error
}

// CreateNotificationParams параметры для создания уведомления.
type CreateNotificationParams struct {
	OwnerID     string
	Subject     string
	Body        string
	Channels    []Channel
	Metadata    map[string]interface{}
	ScheduledAt time.Time
}

// MessageQueuePublisher интерфейс для публикации сообщений в очередь.
type MessageQueuePublisher interface {
	// Publish публикует задачу отправки в очередь с указанным TTL
	Publish(ctx context.Context, id uuid.UUID, ttl time.Duration) error
}
