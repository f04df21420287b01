package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

const DefaultSMTPPort = 587

// SMTPConfig holds the outgoing mail settings. All fields except Port are
// required.
type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Sender   string
}

func (c SMTPConfig) Complete() bool {
	return c.Server != "" && c.Username != "" && c.Password != "" && c.Sender != ""
}

type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

type Mailer interface {
	Send(ctx context.Context, cfg SMTPConfig, msg Message) error
}

// GoMailer delivers messages over SMTP with STARTTLS when the server offers
// it and plain SMTP AUTH.
type GoMailer struct{}

func NewGoMailer() *GoMailer {
	return &GoMailer{}
}

func (m *GoMailer) Send(ctx context.Context, cfg SMTPConfig, msg Message) error {
	if !cfg.Complete() {
		return errors.New("incomplete smtp configuration")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}

	gm := gomail.NewMsg()
	if err := gm.From(cfg.Sender); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := gm.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)

	client, err := gomail.NewClient(
		cfg.Server,
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, gm)
}
