package pg

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
)

// buildUpdateSQL строит SQL запрос для обновления уведомления.
func buildUpdateSQL(id uuid.UUID, params *domain.UpdateParams) (string, []interface{}, error) {
	var (
		sets   []string
		args   []interface{}
		argIdx = 1
	)

	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.RetryCountInc != nil {
		sets = append(sets, "retry_count = retry_count + 1")
	}
	if params.ScheduledAt != nil {
		sets = append(sets, fmt.Sprintf("scheduled_at = $%d", argIdx))
		args = append(args, *params.ScheduledAt)
		argIdx++
	}
	if params.Metadata != nil && params.Metadata.Set {
		jsonData, err := json.Marshal(params.Metadata.Value)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("metadata = $%d", argIdx))
		args = append(args, jsonData)
		argIdx++
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}
	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE notifications SET %s WHERE id = $%d",
		strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	return query, args, nil
}

// rowScanner общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanNotification читает одну строку таблицы notifications.
func scanNotification(row rowScanner) (*domain.Notification, error) {
	var result domain.Notification
	var channelsRaw, metadataRaw []byte

	if err := row.Scan(&result.ID, &result.OwnerID, &result.Subject, &result.Body,
		&channelsRaw, &result.Status, &result.ScheduledAt, &metadataRaw,
		&result.RetryCount, &result.CreatedAt, &result.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(channelsRaw, &result.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}
	if err := json.Unmarshal(metadataRaw, &result.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &result, nil
}

// collectNotifications читает все строки результата запроса.
func collectNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	var n []domain.Notification
	for rows.Next() {
		val, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		n = append(n, *val)
	}
	return n, rows.Err()
}
