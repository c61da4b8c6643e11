package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

// Dispatcher движок отправки: перебирает каналы в порядке приоритета,
// останавливается на первом успехе и пишет каждую попытку в журнал.
type Dispatcher struct {
	adapters        map[domain.Channel]domain.ChannelAdapter
	defaultPriority []domain.Channel
	repo            domain.NotificationRepository
	attempts        domain.AttemptRepository
	cache           domain.RedisRepository
	adapterTimeout  time.Duration
}

// NewDispatcher создает новый экземпляр Dispatcher.
// Набор каналов фиксирован и задается один раз при создании.
func NewDispatcher(
	repo domain.NotificationRepository,
	attempts domain.AttemptRepository,
	cache domain.RedisRepository,
	defaultPriority []domain.Channel,
	adapterTimeout time.Duration,
	adapters ...domain.ChannelAdapter,
) *Dispatcher {
	registry := make(map[domain.Channel]domain.ChannelAdapter, len(adapters))
	for _, a := range adapters {
		registry[a.Name()] = a
	}
	return &Dispatcher{
		adapters:        registry,
		defaultPriority: defaultPriority,
		repo:            repo,
		attempts:        attempts,
		cache:           cache,
		adapterTimeout:  adapterTimeout,
	}
}

// resolve выстраивает список адаптеров в порядке приоритета.
// Берется override, иначе список уведомления, иначе приоритет по умолчанию.
// Имена без зарегистрированного адаптера молча отбрасываются.
func (d *Dispatcher) resolve(n *domain.Notification, override []domain.Channel) []domain.ChannelAdapter {
	priority := override
	if len(priority) == 0 {
		priority = n.Channels
	}
	if len(priority) == 0 {
		priority = d.defaultPriority
	}

	adapters := make([]domain.ChannelAdapter, 0, len(priority))
	for _, name := range priority {
		if a, ok := d.adapters[name]; ok {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

// Dispatch пытается доставить уведомление, возвращает true если
// какой-либо канал принял сообщение. Ошибки адаптеров невозможны по
// контракту ChannelAdapter; наружу уходят только ошибки персистентности.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification,
	override ...domain.Channel) (bool, error) {
	op := "Dispatch:"

	adapters := d.resolve(n, override)
	if len(adapters) == 0 {
		zlog.Logger.Warn().Str("notification_id", n.ID.String()).
			Msgf("%s no channels resolved", op)
		if err := d.settle(ctx, n, domain.StatusFailed); err != nil {
			return false, err
		}
		return false, nil
	}

	// Блокировка строки исключает параллельную отправку того же
	// уведомления; адаптеры вызываются уже после фиксации транзакции.
	fresh, err := d.repo.ClaimForDispatch(ctx, n.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDispatchInProgress):
			zlog.Logger.Warn().Str("notification_id", n.ID.String()).
				Msgf("%s concurrent dispatch detected", op)
		case errors.Is(err, domain.ErrAlreadySent):
			zlog.Logger.Debug().Str("notification_id", n.ID.String()).
				Msgf("%s notification already sent", op)
		}
		return false, err
	}
	d.invalidate(ctx, fresh)

	for _, adapter := range adapters {
		result, startedAt, finishedAt := d.sendOne(ctx, adapter, fresh)

		outcome := domain.OutcomeFailed
		if result.Success {
			outcome = domain.OutcomeSuccess
		}
		attempt := &domain.DeliveryAttempt{
			NotificationID: fresh.ID,
			Channel:        adapter.Name(),
			Outcome:        outcome,
			Details:        result.Details,
			StartedAt:      startedAt,
			FinishedAt:     finishedAt,
		}
		if err := d.attempts.Append(ctx, attempt); err != nil {
			zlog.Logger.Error().Err(err).Str("notification_id", fresh.ID.String()).
				Msgf("%s failed to append delivery attempt", op)
			return false, fmt.Errorf("append attempt: %w", err)
		}

		if result.Success {
			zlog.Logger.Info().Str("notification_id", fresh.ID.String()).
				Str("channel", adapter.Name().String()).
				Msgf("%s delivered", op)
			if err := d.settle(ctx, fresh, domain.StatusSent); err != nil {
				return false, err
			}
			return true, nil
		}

		zlog.Logger.Debug().Str("notification_id", fresh.ID.String()).
			Str("channel", adapter.Name().String()).
			Msgf("%s channel failed, trying next", op)
	}

	zlog.Logger.Warn().Str("notification_id", fresh.ID.String()).
		Msgf("%s all channels exhausted", op)
	if err := d.settle(ctx, fresh, domain.StatusFailed); err != nil {
		return false, err
	}
	return false, nil
}

// sendOne вызывает адаптер с ограничением по времени.
func (d *Dispatcher) sendOne(ctx context.Context, adapter domain.ChannelAdapter,
	n *domain.Notification) (domain.DeliveryResult, time.Time, time.Time) {
	sendCtx := ctx
	if d.adapterTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.adapterTimeout)
		defer cancel()
	}
	startedAt := time.Now()
	result := adapter.Send(sendCtx, n)
	return result, startedAt, time.Now()
}

// settle записывает терминальный статус и сбрасывает кеш.
func (d *Dispatcher) settle(ctx context.Context, n *domain.Notification, status domain.Status) error {
	if err := d.repo.Update(ctx, n.ID, domain.WithStatus(status)); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).
			Msg("failed to settle notification status")
		return fmt.Errorf("settle status %s: %w", status, err)
	}
	n.Status = status
	d.invalidate(ctx, n)
	return nil
}

// invalidate сбрасывает кеш уведомления, ошибка кеша не фатальна.
func (d *Dispatcher) invalidate(ctx context.Context, n *domain.Notification) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, domain.CacheKey(n.ID)); err != nil {
		zlog.Logger.Warn().Err(err).Str("notification_id", n.ID.String()).
			Msg("failed to invalidate notification cache")
	}
}
