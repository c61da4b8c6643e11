package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationRepository интерфейс для работы с уведомлениями в базе данных.
type NotificationRepository interface {
	// Create создает новое уведомление
	Create(ctx context.Context, n CreateParams) (*Notification, error)
	// GetByID получает уведомление по ID
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByOwner получает уведомления владельца, новые первыми
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Notification, error)
	// Update обновляет уведомление с указанными параметрами
	Update(ctx context.Context, id uuid.UUID, opts ...UpdateOption) error
	// ClaimForDispatch под блокировкой строки переводит уведомление
	// в статус in_progress и возвращает перечитанные поля.
	// Если уведомление уже in_progress, возвращает ErrDispatchInProgress.
	ClaimForDispatch(ctx context.Context, id uuid.UUID) (*Notification, error)
	// IncRetryCount увеличивает счетчик попыток для уведомления
	IncRetryCount(ctx context.Context, id uuid.UUID) error
	// ListStuckBefore получает список зависших уведомлений
	// (статус in_progress, либо pending с прошедшим scheduled_at,
	// обновленных до указанного времени)
	ListStuckBefore(ctx context.Context, t time.Time, limit int) ([]Notification, error)
}

// AttemptRepository интерфейс журнала попыток доставки.
type AttemptRepository interface {
	// Append добавляет запись о попытке, записи не изменяются
	Append(ctx context.Context, a *DeliveryAttempt) error
	// ListByNotification возвращает попытки уведомления, новые первыми
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]DeliveryAttempt, error)
}

// CreateParams параметры для создания уведомления.
type CreateParams struct {
	OwnerID     string
	Subject     string
	Body        string
	Channels    []Channel
	Status      Status
	Metadata    map[string]interface{}
	ScheduledAt time.Time
}

// UpdateOption функция для обновления параметров уведомления.
type UpdateOption func(*UpdateParams)

// OptionalMetadata обертка для опционального metadata.
type OptionalMetadata struct {
	Value map[string]interface{}
	Set   bool
}

// UpdateParams параметры для обновления уведомления.
type UpdateParams struct {
	Status        *Status
	RetryCountInc *bool
	ScheduledAt   *time.Time
	Metadata      *OptionalMetadata
}

// WithStatus создает опцию для установки статуса уведомления.
func WithStatus(status Status) UpdateOption {
	return func(p *UpdateParams) {
		p.Status = &status
	}
}

// WithRetryCountInc создает опцию для увеличения счетчика попыток.
func WithRetryCountInc() UpdateOption {
	return func(p *UpdateParams) {
		inc := true
		p.RetryCountInc = &inc
	}
}

// WithScheduledAt создает опцию для установки времени планирования.
func WithScheduledAt(scheduleAt time.Time) UpdateOption {
	return func(p *UpdateParams) {
		p.ScheduledAt = &scheduleAt
	}
}

// WithMetadata создает опцию для установки metadata уведомления.
func WithMetadata(metadata map[string]interface{}) UpdateOption {
	return func(p *UpdateParams) {
		p.Metadata = &OptionalMetadata{
			Value: metadata,
			Set:   true,
		}
	}
}
