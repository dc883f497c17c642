package notifier

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// mailDialer часть *gomail.Dialer, нужная отправителю.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender отправляет коды письмом через SMTP.
type EmailSender struct {
	dialer mailDialer
	from   string
}

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *EmailSender) Send(ctx context.Context, destination, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", "Код подтверждения")
	m.SetBody("text/html", fmt.Sprintf(`
		<h3>Код подтверждения</h3>
		<p>Ваш код: <strong>%s</strong></p>
		<p>Никому не сообщайте этот код. Если вы не запрашивали его, просто проигнорируйте письмо.</p>
	`, code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}
