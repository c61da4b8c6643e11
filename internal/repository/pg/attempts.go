package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// AttemptRepo журнал попыток доставки в PostgreSQL.
// Таблица delivery_attempts только пополняется, записи не изменяются.
type AttemptRepo struct {
	DB *dbpg.DB
}

// NewAttemptRepo создает новый экземпляр AttemptRepo.
func NewAttemptRepo(db *dbpg.DB) *AttemptRepo {
	return &AttemptRepo{
		DB: db,
	}
}

// Append добавляет запись о попытке доставки.
func (p *AttemptRepo) Append(ctx context.Context, a *domain.DeliveryAttempt) error {
	sqlQuery := `INSERT INTO delivery_attempts (notification_id, channel, outcome, details, started_at, finished_at)
 VALUES ($1, $2, $3, $4, $5, $6)
 RETURNING id`

	detailsJSON, err := json.Marshal(a.Details)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error marshalling attempt details")
		return err
	}

	if err = p.DB.QueryRowContext(ctx, sqlQuery,
		a.NotificationID, a.Channel, a.Outcome, detailsJSON, a.StartedAt, a.FinishedAt).Scan(&a.ID); err != nil {
		zlog.Logger.Error().Err(err).Msg("Error scanning delivery attempt id")
		return err
	}

	zlog.Logger.Debug().Msgf("Appended delivery attempt id: %s notification: %s channel: %s outcome: %s",
		a.ID, a.NotificationID, a.Channel, a.Outcome)
	return nil
}

// ListByNotification возвращает попытки уведомления, новые первыми.
func (p *AttemptRepo) ListByNotification(ctx context.Context,
	notificationID uuid.UUID) ([]domain.DeliveryAttempt, error) {
	sqlQuery := `SELECT id, notification_id, channel, outcome, details, started_at, finished_at
	FROM delivery_attempts WHERE notification_id = $1 ORDER BY started_at DESC, id DESC`

	rows, err := p.DB.QueryContext(ctx, sqlQuery, notificationID)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Error exec list attempts sql")
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var val domain.DeliveryAttempt
		var detailsRaw []byte

		if err = rows.Scan(&val.ID, &val.NotificationID, &val.Channel,
			&val.Outcome, &detailsRaw, &val.StartedAt, &val.FinishedAt); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error scan delivery attempt")
			return nil, err
		}
		if err = json.Unmarshal(detailsRaw, &val.Details); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error unmarshalling attempt details")
			return nil, err
		}
		attempts = append(attempts, val)
	}
	return attempts, rows.Err()
}
