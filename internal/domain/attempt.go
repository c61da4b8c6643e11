package domain

import (
	"time"

	"github.com/google/uuid"
)

type Outcome string

// String возвращает строковое представление результата попытки.
func (o Outcome) String() string {
	return string(o)
}

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// DeliveryAttempt представляет одну попытку доставки уведомления.
// Записи неизменяемы после создания, журнал попыток только пополняется.
type DeliveryAttempt struct {
	ID             uuid.UUID
	NotificationID uuid.UUID
	Channel        Channel
	Outcome        Outcome
	Details        map[string]interface{}
	StartedAt      time.Time
	FinishedAt     time.Time
}
