package mailer

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/domain/models"
)

// Sender delivers email through an SMTP relay.
type Sender interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg models.MailMessage) error
}

// SMTPMailer is a gomail-backed Sender.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

// NewSMTPMailer builds a mailer that authenticates as cfg.Username.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.Username,
		fromName: cfg.FromName,
	}
}

// Verify opens and authenticates an SMTP session, then closes it.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	err := withContext(ctx, func() error {
		closer, err := m.dialer.Dial()
		if err != nil {
			return err
		}
		return closer.Close()
	})
	if err != nil {
		return fmt.Errorf("verify smtp connection: %w", err)
	}
	return nil
}

// Send delivers msg in a single SMTP session.
func (m *SMTPMailer) Send(ctx context.Context, msg models.MailMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("send mail: no recipients")
	}

	message := m.compose(msg)
	if err := withContext(ctx, func() error { return m.dialer.DialAndSend(message) }); err != nil {
		return fmt.Errorf("send mail to %v: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg models.MailMessage) *gomail.Message {
	fromName := msg.FromName
	if fromName == "" {
		fromName = m.fromName
	}

	message := gomail.NewMessage()
	message.SetAddressHeader("From", m.from, fromName)
	message.SetHeader("To", msg.To...)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Body)

	for _, att := range msg.Attachments {
		content := att.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}))
		}
		message.Attach(att.Filename, settings...)
	}

	return message
}

// withContext runs fn in its own goroutine so a blocked SMTP exchange cannot
// outlive ctx. fn keeps running in the background after ctx expires.
func withContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
