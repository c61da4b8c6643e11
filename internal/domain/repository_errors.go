package domain

import "errors"

var (
	// ErrNoRowAffected ошибка, когда ни одна строка не была изменена.
	ErrNoRowAffected = errors.New("no row affected")
	// ErrNotFound ошибка, когда уведомление не найдено.
	ErrNotFound = errors.New("notification not found")
	// ErrDispatchInProgress ошибка, когда уведомление уже обрабатывается
	// параллельным вызовом движка.
	ErrDispatchInProgress = errors.New("dispatch already in progress")
	// ErrAlreadySent ошибка повторной отправки уже доставленного
	// уведомления: из статуса sent переходов нет.
	ErrAlreadySent = errors.New("notification already sent")
)
