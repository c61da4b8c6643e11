package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// PostgresRepo структура для работы с уведомлениями в PostgreSQL.
type PostgresRepo struct {
	DB *dbpg.DB
}

// NewPostgresRepo создает новый экземпляр PostgresRepo.
func NewPostgresRepo(db *dbpg.DB) *PostgresRepo {
	return &PostgresRepo{
		DB: db,
	}
}

const notificationColumns = `id, owner_id, subject, body, channels, status,
       scheduled_at, metadata, retry_count, created_at, updated_at`

// Create создает новое уведомление в базе данных.
func (p *PostgresRepo) Create(ctx context.Context, n domain.CreateParams) (*domain.Notification, error) {
	sqlQuery := `INSERT INTO notifications (owner_id, subject, body, channels, status, scheduled_at, metadata)
 VALUES ($1, $2, $3, $4, $5, $6, $7)
 RETURNING id, retry_count, created_at, updated_at`

	channelsJSON, err := json.Marshal(n.Channels)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error marshalling notification channels")
		return nil, err
	}
	metadataJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error marshalling notification metadata")
		return nil, err
	}

	var result domain.Notification
	if err = p.DB.QueryRowContext(ctx, sqlQuery,
		n.OwnerID, n.Subject, n.Body, channelsJSON, n.Status, n.ScheduledAt, metadataJSON).Scan(
		&result.ID, &result.RetryCount, &result.CreatedAt, &result.UpdatedAt); err != nil {
		zlog.Logger.Error().Err(err).Msg("Error scanning notification")
		return nil, err
	}
	result.OwnerID = n.OwnerID
	result.Subject = n.Subject
	result.Body = n.Body
	result.Channels = n.Channels
	result.Status = n.Status
	result.ScheduledAt = n.ScheduledAt
	result.Metadata = n.Metadata

	zlog.Logger.Debug().Msgf(
		"Created notification id: %s owner:%s, channels:%v, scheduledAt: %v",
		result.ID,
		n.OwnerID,
		n.Channels,
		n.ScheduledAt,
	)

	return &result, nil
}

// GetByID получает уведомление по ID из базы данных.
func (p *PostgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	start := time.Now()

	sqlQuery := `SELECT ` + notificationColumns + `
	FROM notifications WHERE id = $1 LIMIT 1`

	result, err := scanNotification(p.DB.QueryRowContext(ctx, sqlQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		zlog.Logger.Error().Err(err).Msg("Error scan notification fields")
		return nil, err
	}

	zlog.Logger.Debug().Msgf("Get notification by id: %s : TIME: %s", id, time.Since(start))
	return result, nil
}

// ListByOwner получает уведомления владельца, новые первыми.
func (p *PostgresRepo) ListByOwner(ctx context.Context, ownerID string,
	limit, offset int) ([]domain.Notification, error) {
	sqlQuery := `SELECT ` + notificationColumns + `
	FROM notifications WHERE owner_id = $1 ORDER BY created_at DESC`

	if limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := p.DB.QueryContext(ctx, sqlQuery, ownerID)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec list by owner sql")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	return collectNotifications(rows)
}

// Update обновляет уведомление в базе данных с указанными параметрами.
func (p *PostgresRepo) Update(ctx context.Context, id uuid.UUID, opts ...domain.UpdateOption) error {
	if len(opts) == 0 {
		return domain.ErrEmptyUpdateOptions
	}

	params := &domain.UpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	query, args, err := buildUpdateSQL(id, params)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error build update sql notification")
		return err
	}

	result, err := p.DB.ExecContext(ctx, query, args...)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec update sql notification")
		return err
	}
	rowAffected, _ := result.RowsAffected()
	if rowAffected == 0 {
		zlog.Logger.Warn().Msgf("Update notification id: %v No rows affected", id)
		return domain.ErrNoRowAffected
	}

	return nil
}

// ClaimForDispatch под блокировкой строки переводит уведомление в
// in_progress и возвращает перечитанные поля. Уже идущая отправка
// обнаруживается по статусу и отклоняется с ErrDispatchInProgress.
func (p *PostgresRepo) ClaimForDispatch(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error begin claim transaction")
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sqlQuery := `SELECT ` + notificationColumns + `
	FROM notifications WHERE id = $1 FOR UPDATE`

	result, err := scanNotification(tx.QueryRowContext(ctx, sqlQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		zlog.Logger.Error().Err(err).Msg("Error scan notification under lock")
		return nil, err
	}

	if result.Status == domain.StatusInProgress {
		return nil, domain.ErrDispatchInProgress
	}
	if result.Status == domain.StatusSent {
		return nil, domain.ErrAlreadySent
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE notifications SET status = $1, updated_at = NOW() WHERE id = $2`,
		domain.StatusInProgress, id); err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec claim update")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Error commit claim transaction")
		return nil, err
	}

	result.Status = domain.StatusInProgress
	return result, nil
}

// ListStuckBefore получает список зависших уведомлений
// (статус in_progress, либо pending с прошедшим scheduled_at,
// обновленных до указанного времени).
func (p *PostgresRepo) ListStuckBefore(ctx context.Context, t time.Time,
	limit int) ([]domain.Notification, error) {
	sqlQuery := `SELECT ` + notificationColumns + `
	FROM notifications
	WHERE updated_at < $1
	  AND (status = $2 OR (status = $3 AND scheduled_at <= NOW()))
	ORDER BY updated_at`

	if limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := p.DB.QueryContext(ctx, sqlQuery, t, domain.StatusInProgress, domain.StatusPending)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec list stuck before sql")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	n, err := collectNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(n) == 0 {
		zlog.Logger.Debug().Msgf("No stuck notifications found")
		return n, domain.ErrNotFound
	}
	return n, nil
}

// IncRetryCount увеличивает счетчик попыток для уведомления.
func (p *PostgresRepo) IncRetryCount(ctx context.Context, id uuid.UUID) error {
	sqlQuery := `UPDATE notifications SET retry_count = retry_count + 1, updated_at = NOW() WHERE id = $1`

	r, err := p.DB.ExecContext(ctx, sqlQuery, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec retry count")
		return err
	}
	rows, _ := r.RowsAffected()
	if rows == 0 {
		return domain.ErrNoRowAffected
	}
	return nil
}
