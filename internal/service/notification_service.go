package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// minPublishTTL минимальная задержка сообщения в очереди.
const minPublishTTL = 2 * time.Second

type NotificationService struct {
	repo            domain.NotificationRepository
	attempts        domain.AttemptRepository
	publisher       domain.MessageQueuePublisher
	redis           domain.RedisRepository
	redisExpiration time.Duration
}

func NewNotificationService(
	repo domain.NotificationRepository,
	attempts domain.AttemptRepository,
	publisher domain.MessageQueuePublisher,
	redis domain.RedisRepository,
	redisExpiration time.Duration) *NotificationService {
	return &NotificationService{
		repo:            repo,
		attempts:        attempts,
		publisher:       publisher,
		redis:           redis,
		redisExpiration: redisExpiration,
	}
}

// CreateNotification создает уведомление в статусе pending и ставит
// задачу отправки с задержкой до scheduled_at.
func (s *NotificationService) CreateNotification(ctx context.Context,
	params domain.CreateNotificationParams) (*domain.Notification, error) {
	op := "CreateNotification:"
	if params.OwnerID == "" {
		zlog.Logger.Warn().Msgf("%s owner is empty", op)
		return nil, domain.ErrEmptyOwner
	}
	if params.Body == "" {
		zlog.Logger.Warn().Msgf("%s body is empty", op)
		return nil, domain.ErrEmptyBody
	}
	for _, ch := range params.Channels {
		if !ch.IsValid() {
			zlog.Logger.Warn().Msgf("%s notification (channel = %s) is invalid", op, ch.String())
			return nil, domain.ErrInvalidChannel
		}
	}

	scheduledAt := params.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}

	opt := domain.CreateParams{
		OwnerID:     params.OwnerID,
		Subject:     params.Subject,
		Body:        params.Body,
		Channels:    params.Channels,
		Status:      domain.StatusPending,
		Metadata:    params.Metadata,
		ScheduledAt: scheduledAt,
	}

	ttl := time.Until(scheduledAt)
	if ttl < minPublishTTL {
		ttl = minPublishTTL
	}

	n, err := s.repo.Create(ctx, opt)
	if err != nil {
		zlog.Logger.Error().Msgf("%s failed to create notification: %v", op, err)
		return nil, err
	}

	if err := s.marshalAndSet(ctx, n); err != nil {
		return nil, err
	}

	zlog.Logger.Debug().Msgf("%s notification created, ttl:%v", op, ttl)
	if err := s.publisher.Publish(ctx, n.ID, ttl); err != nil {
		zlog.Logger.Error().Msgf("%s failed to enqueue notification: %v", op, err)
		return nil, err
	}

	return n, nil
}

func (s *NotificationService) UpdateNotification(ctx context.Context, n *domain.Notification,
	opts ...domain.UpdateOption) error {
	op := "UpdateNotification:"
	if len(opts) == 0 {
		return domain.ErrEmptyUpdateOptions
	}
	params := &domain.UpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	if params.Status != nil {
		if !params.Status.IsValid() {
			zlog.Logger.Warn().Msgf("%s notification (status = %s) is invalid", op, params.Status.String())
			return domain.ErrInvalidStatus
		}
		n.Status = *params.Status
	}

	if err := s.repo.Update(ctx, n.ID, opts...); err != nil {
		if errors.Is(err, domain.ErrNoRowAffected) {
			zlog.Logger.Warn().Msgf("%s Notification Update: %v", op, err)
			return nil
		}
		zlog.Logger.Error().Msgf("%s failed to update notification: %v", op, err)
		return err
	}
	if err := s.marshalAndSet(ctx, n); err != nil {
		zlog.Logger.Error().Msgf("%s failed to refresh notification cache: %v", op, err)
		return err
	}
	return nil
}

func (s *NotificationService) GetNotificationByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var n *domain.Notification
	redisData, err := s.redis.Get(ctx, domain.CacheKey(id))
	if err != nil && !errors.Is(err, redis.Nil) {
		zlog.Logger.Error().Err(err).Msgf("failed to fetch notification: %v", err)
		return nil, err
	}

	if errors.Is(err, redis.Nil) {
		zlog.Logger.Debug().Msgf("%s: notification not cached, fetch from database", id)
		n, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				zlog.Logger.Warn().Msgf("notification (id = %s) not found", id)
				return nil, domain.ErrNotFound
			}
			return nil, err
		}

		if err := s.marshalAndSet(ctx, n); err != nil {
			zlog.Logger.Error().Msgf("%s failed to cache notification: %v", id, err)
			return nil, err
		}

		return n, nil
	}

	zlog.Logger.Debug().Msgf("%s: notification found in cache", id.String())
	if err := json.Unmarshal([]byte(redisData), &n); err != nil {
		zlog.Logger.Error().Err(err).Msgf("%s: failed to unmarshal notification: %v", id, err)
		return nil, err
	}
	return n, nil
}

// ListByOwner получает уведомления владельца, новые первыми.
func (s *NotificationService) ListByOwner(ctx context.Context, ownerID string,
	limit, offset int) ([]domain.Notification, error) {
	if ownerID == "" {
		return nil, domain.ErrEmptyOwner
	}
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// ListAttempts возвращает журнал попыток доставки, новые первыми.
func (s *NotificationService) ListAttempts(ctx context.Context,
	id uuid.UUID) ([]domain.DeliveryAttempt, error) {
	return s.attempts.ListByNotification(ctx, id)
}

// Resend сбрасывает статус в pending и заново ставит задачу отправки.
// Журнал предыдущих попыток сохраняется.
func (s *NotificationService) Resend(ctx context.Context, id uuid.UUID) error {
	op := "Resend:"
	n, err := s.GetNotificationByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.UpdateNotification(ctx, n, domain.WithStatus(domain.StatusPending)); err != nil {
		zlog.Logger.Error().Msgf("%s failed to reset notification: %v", op, err)
		return err
	}

	if err := s.publisher.Publish(ctx, n.ID, minPublishTTL); err != nil {
		zlog.Logger.Error().Msgf("%s failed to enqueue notification: %v", op, err)
		return err
	}
	zlog.Logger.Info().Msgf("%s notification %s queued again", op, id)
	return nil
}

func (s *NotificationService) IncRetryCount(ctx context.Context, n *domain.Notification) error {
	return s.UpdateNotification(ctx, n, domain.WithRetryCountInc())
}

func (s *NotificationService) marshalAndSet(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		zlog.Logger.Error().Msgf("%s failed to marshal notification: %v", n.ID, err)
		return err
	}
	if err := s.redis.SetWithExpiration(ctx, domain.CacheKey(n.ID), data, s.redisExpiration); err != nil {
		zlog.Logger.Error().Msgf("%s failed to set notification cache: %v", n.ID, err)
		return err
	}
	return nil
}
