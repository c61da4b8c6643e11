package domain

import "context"

// DeliveryResult результат вызова адаптера канала.
type DeliveryResult struct {
	Success bool
	Details map[string]interface{}
}

// ChannelAdapter интерфейс адаптера одного канала доставки.
// Реализация обязана перехватывать все транспортные ошибки и
// возвращать их как DeliveryResult{Success: false}, никогда не
// отдавая ошибку вызывающему движку.
type ChannelAdapter interface {
	// Name возвращает имя канала
	Name() Channel
	// Send отправляет уведомление через канал
	Send(ctx context.Context, n *Notification) DeliveryResult
}

// FailedResult собирает неуспешный результат с текстом ошибки.
func FailedResult(errText string) DeliveryResult {
	return DeliveryResult{
		Success: false,
		Details: map[string]interface{}{"error": errText},
	}
}
