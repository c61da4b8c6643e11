package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"NotifyRelay/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

const sendTimeout = 5 * time.Second

// Adapter адаптер канала sms поверх HTTP шлюза провайдера.
type Adapter struct {
	providerURL string
	token       string
	client      *http.Client
}

// NewAdapter создает новый экземпляр Adapter.
// Пустые providerURL или token не являются ошибкой конструктора:
// адаптер вернет неуспешный результат при первой попытке отправки.
func NewAdapter(providerURL, token string) *Adapter {
	return &Adapter{
		providerURL: providerURL,
		token:       token,
		client:      &http.Client{Timeout: sendTimeout},
	}
}

// Name возвращает имя канала.
func (a *Adapter) Name() domain.Channel {
	return domain.ChannelSMS
}

type smsPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Send отправляет текст уведомления через SMS шлюз.
// Номер берется из metadata["phone"], иначе используется OwnerID.
func (a *Adapter) Send(ctx context.Context, n *domain.Notification) domain.DeliveryResult {
	if a.providerURL == "" || a.token == "" {
		return domain.FailedResult("SMS provider not configured")
	}

	to := n.OwnerID
	if v, ok := n.Metadata["phone"].(string); ok && v != "" {
		to = v
	}

	body, err := json.Marshal(smsPayload{To: to, Text: n.Body})
	if err != nil {
		return domain.FailedResult(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.providerURL, bytes.NewReader(body))
	if err != nil {
		return domain.FailedResult(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("sms send failed")
		return domain.FailedResult(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Logger.Warn().Int("status", resp.StatusCode).
			Str("notification_id", n.ID.String()).Msg("sms gateway returned error")
		return domain.FailedResult(fmt.Sprintf("sms gateway status %d: %s", resp.StatusCode, respBody))
	}

	var providerResp map[string]interface{}
	if err := json.Unmarshal(respBody, &providerResp); err != nil {
		providerResp = map[string]interface{}{"raw": string(respBody)}
	}

	return domain.DeliveryResult{
		Success: true,
		Details: map[string]interface{}{
			"provider": "sms-gateway",
			"response": providerResp,
		},
	}
}
