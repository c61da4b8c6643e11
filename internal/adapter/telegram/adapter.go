package telegram

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

// Adapter адаптер канала telegram поверх Bot API.
type Adapter struct {
	botToken string
	apiBase  string
	client   *http.Client
}

// NewAdapter создает новый экземпляр Adapter.
func NewAdapter(botToken, apiBase string) *Adapter {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &Adapter{
		botToken: botToken,
		apiBase:  apiBase,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// Name возвращает имя канала.
func (a *Adapter) Name() domain.Channel {
	return domain.ChannelTelegram
}

type sendMessagePayload struct {
	ChatID interface{} `json:"chat_id"`
	Text   string      `json:"text"`
}

// Send отправляет текст уведомления через Telegram Bot API.
// Идентификатор чата берется из metadata["telegram_chat_id"].
func (a *Adapter) Send(ctx context.Context, n *domain.Notification) domain.DeliveryResult {
	chatID, ok := n.Metadata["telegram_chat_id"]
	if a.botToken == "" || !ok || chatID == nil || chatID == "" {
		return domain.FailedResult("Telegram token or chat_id missing")
	}

	body, err := json.Marshal(sendMessagePayload{ChatID: chatID, Text: n.Body})
	if err != nil {
		return domain.FailedResult(err.Error())
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.apiBase, a.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.FailedResult(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("telegram send failed")
		return domain.FailedResult(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zlog.Logger.Warn().Int("status", resp.StatusCode).
			Str("notification_id", n.ID.String()).Msg("telegram api returned error")
		return domain.FailedResult(fmt.Sprintf("telegram api status %d: %s", resp.StatusCode, respBody))
	}

	var providerResp map[string]interface{}
	if err := json.Unmarshal(respBody, &providerResp); err != nil {
		providerResp = map[string]interface{}{"raw": string(respBody)}
	}

	return domain.DeliveryResult{
		Success: true,
		Details: map[string]interface{}{
			"provider": "telegram",
			"response": providerResp,
		},
	}
}
