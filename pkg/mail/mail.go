// Package mail sends plain-text transactional email.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

// Message is a single plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var validate = validator.New()

// Validate checks the recipient address and the required fields.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient is required")
	}
	if err := validate.Var(m.To, "email"); err != nil {
		return fmt.Errorf("invalid recipient %q", m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}

// NewSender picks SendGrid when an API key is configured and the log sender
// otherwise.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) Sender {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewLogSender(logg)
	}
	return NewSendGridSender(cfg)
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*sendgridResponse, error)
}

type sendgridResponse struct {
	StatusCode int
	Body       string
}

// SendGridSender posts messages to the SendGrid v3 API.
type SendGridSender struct {
	from   *sgmail.Email
	client sendgridClient
}

func NewSendGridSender(cfg config.SendgridConfig) *SendGridSender {
	return &SendGridSender{
		from:   sgmail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		client: &apiClient{client: sendgrid.NewSendClient(cfg.APIKey)},
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	to := sgmail.NewEmail(msg.ToName, msg.To)
	email := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.Body, "")

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// DeliveryError is a non-2xx answer from the provider.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sendgrid responded %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether resending can succeed.
func (e *DeliveryError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type apiClient struct {
	client *sendgrid.Client
}

func (a *apiClient) SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*sendgridResponse, error) {
	resp, err := a.client.SendWithContext(ctx, email)
	if err != nil {
		return nil, err
	}
	return &sendgridResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// LogSender writes messages to the log instead of sending them. Used in dev.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"mail_to":      msg.To,
		"mail_subject": msg.Subject,
		"mail_bytes":   len(msg.Body),
	})
	s.logg.Info(ctx, "mail.logged")
	return nil
}
