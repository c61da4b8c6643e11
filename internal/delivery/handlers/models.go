package handlers

import (
	"time"

	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
)

type NotificationResponse struct {
	ID          uuid.UUID              `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Subject     string                 `json:"subject"`
	Body        string                 `json:"body"`
	Channels    []string               `json:"channels"`
	Status      string                 `json:"status"`
	ScheduledAt time.Time              `json:"scheduled_at"`
	Metadata    map[string]interface{} `json:"metadata"`
	RetryCount  int                    `json:"retry_count"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Attempts    []AttemptResponse      `json:"attempts,omitempty"`
}

type AttemptResponse struct {
	ID         uuid.UUID              `json:"id"`
	Channel    string                 `json:"channel"`
	Outcome    string                 `json:"outcome"`
	Details    map[string]interface{} `json:"details"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

func toNotificationResponse(n *domain.Notification, attempts []domain.DeliveryAttempt) NotificationResponse {
	channels := make([]string, 0, len(n.Channels))
	for _, ch := range n.Channels {
		channels = append(channels, ch.String())
	}
	resp := NotificationResponse{
		ID:          n.ID,
		OwnerID:     n.OwnerID,
		Subject:     n.Subject,
		Body:        n.Body,
		Channels:    channels,
		Status:      n.Status.String(),
		ScheduledAt: n.ScheduledAt,
		Metadata:    n.Metadata,
		RetryCount:  n.RetryCount,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
	for i := range attempts {
		a := &attempts[i]
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			ID:         a.ID,
			Channel:    a.Channel.String(),
			Outcome:    a.Outcome.String(),
			Details:    a.Details,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
		})
	}
	return resp
}
