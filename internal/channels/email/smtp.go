package email

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"notification-workers/internal/common/errors"

	"github.com/wneessen/go-mail"
)

var errNoRecipients = stderrors.New("no recipients")

// mailClient is the part of *mail.Client used here.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender sends through an SMTP relay with go-mail.
type SMTPSender struct {
	client mailClient
	from   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
	From     string
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
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
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send delivers one message addressed to every recipient in msg.To.
func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return errors.NewInvalidPayloadError("email", err)
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.NewChannelDeliveryError("smtp", err)
	}
	return nil
}

func buildMsg(from string, msg Email) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errNoRecipients
	}
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	return m, nil
}
