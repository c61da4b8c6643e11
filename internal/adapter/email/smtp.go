package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sync"
	"time"
)

// SMTPClient держит соединение с SMTP сервером и отправляет письма.
type SMTPClient struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool

	Timeout time.Duration

	mu     sync.Mutex
	client *smtp.Client
}

// NewSMTPClient создает новый экземпляр SMTPClient и проверяет соединение.
func NewSMTPClient(host string, port int, username, password, from string, ssl bool) (*SMTPClient, error) {
	s := &SMTPClient{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		SSL:      ssl,
		Timeout:  10 * time.Second,
	}

	if err := s.connect(); err != nil {
		return nil, err
	}

	return s, nil
}

// connect устанавливает соединение с SMTP сервером.
func (s *SMTPClient) connect() error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	dialer := &net.Dialer{Timeout: s.Timeout}

	var conn net.Conn
	var err error

	if s.SSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.Host})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	clientChan := make(chan *smtp.Client, 1)
	errChan := make(chan error, 1)

	go func() {
		client, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			_ = conn.Close()
			errChan <- err
			return
		}
		clientChan <- client
	}()

	var client *smtp.Client
	select {
	case client = <-clientChan:
	case err := <-errChan:
		return fmt.Errorf("smtp.NewClient failed: %w", err)
	case <-time.After(s.Timeout):
		_ = conn.Close()
		return fmt.Errorf("smtp.NewClient timed out (server did not send banner)")
	}

	if !s.SSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
				_ = client.Close()
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}

	// Пропускаем аутентификацию, если credentials пустые (для MailHog и других тестовых SMTP)
	if s.Username != "" || s.Password != "" {
		auth := smtp.CRAMMD5Auth(s.Username, s.Password)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				_ = client.Close()
				return fmt.Errorf("authentication failed: %w", err)
			}
		}
	}

	s.client = client
	return nil
}

// ensureConnected проверяет и восстанавливает соединение с SMTP сервером.
func (s *SMTPClient) ensureConnected() error {
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return nil
		}
	}
	return s.connect()
}

// SendMail отправляет письмо указанному получателю.
func (s *SMTPClient) SendMail(ctx context.Context, recipient, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(); err != nil {
		return err
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s\r\n\r\n%s",
		s.From,
		recipient,
		subject,
		"text/plain; charset=utf-8",
		body,
	))

	done := make(chan error, 1)

	go func() {
		done <- s.sendMessage(recipient, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// sendMessage отправляет сообщение через установленное SMTP соединение.
func (s *SMTPClient) sendMessage(recipient string, msg []byte) error {
	if err := s.client.Mail(s.From); err != nil {
		return err
	}
	if err := s.client.Rcpt(recipient); err != nil {
		return err
	}
	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}

	return w.Close()
}

// Close закрывает SMTP соединение.
func (s *SMTPClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Quit()
		s.client = nil
	}

	return nil
}
