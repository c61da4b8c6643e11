package domain

import "errors"

var (
	// ErrInvalidChannel ошибка невалидного канала уведомления.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidStatus ошибка невалидного статуса уведомления.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrEmptyBody ошибка пустого текста уведомления.
	ErrEmptyBody = errors.New("body is empty")
	// ErrEmptyOwner ошибка пустого владельца.
	ErrEmptyOwner = errors.New("owner is empty")
	// ErrEmptyUpdateOptions ошибка пустых параметров обновления.
	ErrEmptyUpdateOptions = errors.New("no update options provided")
)
