package notification

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends messages through an SMTP relay.
type Mailer struct {
	client *mail.Client
	from   string
}

func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: client, from: cfg.From}, nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	em := mail.NewMsg()
	if err := em.From(m.from); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := em.To(msg.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m.client.DialAndSendWithContext(ctx, em)
}
