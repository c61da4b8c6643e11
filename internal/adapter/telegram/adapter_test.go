package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"NotifyRelay/internal/adapter/telegram"
	"NotifyRelay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestSend_Success проверяет успешный вызов Bot API
func TestSend_Success(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 7}}`))
	}))
	defer srv.Close()

	adapter := telegram.NewAdapter("bot-token", srv.URL)

	n := &domain.Notification{
		ID:       uuid.New(),
		OwnerID:  "user-1",
		Body:     "hello",
		Metadata: map[string]interface{}{"telegram_chat_id": "12345"},
	}

	result := adapter.Send(context.Background(), n)

	assert.True(t, result.Success)
	assert.Equal(t, "telegram", result.Details["provider"])
	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotPayload["chat_id"])
	assert.Equal(t, "hello", gotPayload["text"])
}

// TestSend_MissingChatID проверяет отказ без идентификатора чата
func TestSend_MissingChatID(t *testing.T) {
	adapter := telegram.NewAdapter("bot-token", "")

	n := &domain.Notification{ID: uuid.New(), OwnerID: "user-1", Body: "hello"}

	result := adapter.Send(context.Background(), n)

	assert.False(t, result.Success)
	assert.Equal(t, "Telegram token or chat_id missing", result.Details["error"])
}

// TestSend_MissingToken проверяет отказ без токена бота
func TestSend_MissingToken(t *testing.T) {
	adapter := telegram.NewAdapter("", "")

	n := &domain.Notification{
		ID:       uuid.New(),
		OwnerID:  "user-1",
		Body:     "hello",
		Metadata: map[string]interface{}{"telegram_chat_id": "12345"},
	}

	result := adapter.Send(context.Background(), n)

	assert.False(t, result.Success)
	assert.Equal(t, "Telegram token or chat_id missing", result.Details["error"])
}

// TestSend_APIError проверяет превращение ошибки Bot API в неуспешный результат
func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	adapter := telegram.NewAdapter("bot-token", srv.URL)

	n := &domain.Notification{
		ID:       uuid.New(),
		OwnerID:  "user-1",
		Body:     "hello",
		Metadata: map[string]interface{}{"telegram_chat_id": "12345"},
	}

	result := adapter.Send(context.Background(), n)

	assert.False(t, result.Success)
	assert.Contains(t, result.Details["error"], "chat not found")
}
