package email

import (
	"context"

	"NotifyRelay/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

const defaultSubject = "Notification"

// Mailer интерфейс отправки одного письма.
type Mailer interface {
	SendMail(ctx context.Context, recipient, subject, body string) error
}

// Adapter адаптер канала email поверх SMTP.
// Любая транспортная ошибка превращается в неуспешный результат.
type Adapter struct {
	mailer Mailer
}

// NewAdapter создает новый экземпляр Adapter.
func NewAdapter(mailer Mailer) *Adapter {
	return &Adapter{mailer: mailer}
}

// Name возвращает имя канала.
func (a *Adapter) Name() domain.Channel {
	return domain.ChannelEmail
}

// Send отправляет subject и body уведомления по почте.
// Адрес берется из metadata["email"], иначе используется OwnerID.
func (a *Adapter) Send(ctx context.Context, n *domain.Notification) domain.DeliveryResult {
	if a.mailer == nil {
		return domain.FailedResult("email transport not configured")
	}

	recipient := n.OwnerID
	if v, ok := n.Metadata["email"].(string); ok && v != "" {
		recipient = v
	}

	subject := n.Subject
	if subject == "" {
		subject = defaultSubject
	}

	if err := a.mailer.SendMail(ctx, recipient, subject, n.Body); err != nil {
		zlog.Logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("email send failed")
		return domain.FailedResult(err.Error())
	}

	return domain.DeliveryResult{
		Success: true,
		Details: map[string]interface{}{"provider": "smtp"},
	}
}
