package worker

import (
	"context"
	"errors"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

// requeueTTL задержка повторной задачи. Задержка всегда положительная:
// сообщение без TTL не покидает отложенную очередь через DLX.
const requeueTTL = 2 * time.Second

// Sweeper периодически возвращает в очередь зависшие уведомления:
// in_progress без движения дольше окна (обработчик упал после захвата
// блокировки) и pending, чья задача потерялась.
type Sweeper struct {
	repo      domain.NotificationRepository
	publisher domain.MessageQueuePublisher
	interval  time.Duration
	staleness time.Duration
	batchSize int
}

// NewSweeper создает новый экземпляр Sweeper.
func NewSweeper(repo domain.NotificationRepository, publisher domain.MessageQueuePublisher,
	interval, staleness time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		staleness: staleness,
		batchSize: batchSize,
	}
}

// Start запускает цикл проверки, блокируется до отмены контекста.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	zlog.Logger.Info().Dur("interval", s.interval).Msg("stuck notification sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep находит зависшие уведомления и заново ставит задачи отправки.
func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.staleness)
	stuck, err := s.repo.ListStuckBefore(ctx, cutoff, s.batchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		zlog.Logger.Error().Err(err).Msg("sweeper: failed to list stuck notifications")
		return
	}

	for i := range stuck {
		n := &stuck[i]
		// Возврат в pending снимает незавершенный захват, повторная
		// отправка пойдет через обычный путь с блокировкой.
		if n.Status == domain.StatusInProgress {
			if err := s.repo.Update(ctx, n.ID, domain.WithStatus(domain.StatusPending)); err != nil {
				zlog.Logger.Error().Err(err).Msgf("sweeper: failed to reset %s", n.ID)
				continue
			}
		}
		if err := s.publisher.Publish(ctx, n.ID, requeueTTL); err != nil {
			zlog.Logger.Error().Err(err).Msgf("sweeper: failed to requeue %s", n.ID)
			continue
		}
		zlog.Logger.Info().Msgf("sweeper: requeued stuck notification %s", n.ID)
	}
}
