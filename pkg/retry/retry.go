package retry

import (
	"time"
)

// Strategy стратегия повторов с нарастающей задержкой.
type Strategy struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// Do выполняет fn до первого успеха, но не более Attempts раз.
// Перед каждым повтором выдерживается задержка, умножаемая на Backoff.
func Do(fn func() error, s Strategy) error {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := s.Backoff
	if backoff < 1 {
		backoff = 1
	}

	var err error
	delay := s.Delay
	for i := 0; i < attempts; i++ {
		if i > 0 && delay > 0 {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * backoff)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
