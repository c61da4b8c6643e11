package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// IsValid проверяет, является ли статус валидным.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSent, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal проверяет, является ли статус конечным.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

type Channel string

// String возвращает строковое представление канала.
func (c Channel) String() string {
	return string(c)
}

// IsValid проверяет, является ли канал валидным.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelTelegram:
		return true
	default:
		return false
	}
}

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// Notification представляет структуру уведомления.
// Channels задается при создании и далее не изменяется,
// статус меняется только движком отправки и явным resend.
type Notification struct {
	ID          uuid.UUID
	OwnerID     string
	Subject     string
	Body        string
	Channels    []Channel
	Status      Status
	ScheduledAt time.Time
	Metadata    map[string]interface{}
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job представляет структуру задачи для обработки уведомлений.
type Job struct {
	NotificationID string `json:"notification_id"`
}

// CacheKey возвращает ключ кеша для уведомления.
func CacheKey(id uuid.UUID) string {
	return "notification:" + id.String()
}
