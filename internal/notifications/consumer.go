// Package notifications turns domain events read from Kafka into email.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgkafka "github.com/angelmondragon/bistro-backend/pkg/kafka"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/mail"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/registry"
)

const (
	consumerName       = "notifications"
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type claimer interface {
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

type recipientLookup interface {
	ListActiveByRoles(ctx context.Context, roles []enums.Role) ([]models.User, error)
}

// ConsumerParams bundles the notification consumer dependencies.
type ConsumerParams struct {
	Reader      messageReader
	Registry    *registry.EventRegistry
	Idempotency claimer
	Sender      mail.Sender
	Recipients  recipientLookup
	Restaurant  config.RestaurantConfig
	Logger      *logger.Logger
	MaxAttempts int
	RetryDelay  time.Duration
}

// Consumer reads the event topics and sends one email per recipient.
type Consumer struct {
	reader      messageReader
	registry    *registry.EventRegistry
	idempotency claimer
	sender      mail.Sender
	recipients  recipientLookup
	restaurant  config.RestaurantConfig
	logg        *logger.Logger
	maxAttempts int
	retryDelay  time.Duration
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Reader == nil {
		return nil, fmt.Errorf("kafka reader required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if params.Recipients == nil {
		return nil, fmt.Errorf("recipient lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := params.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &Consumer{
		reader:      params.Reader,
		registry:    params.Registry,
		idempotency: params.Idempotency,
		sender:      params.Sender,
		recipients:  params.Recipients,
		restaurant:  params.Restaurant,
		logg:        params.Logger,
		maxAttempts: attempts,
		retryDelay:  delay,
	}, nil
}

// Run fetches and handles messages until ctx is canceled. Offsets are
// committed after the message is handled or given up on.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.handleWithRetry(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})
	for attempt := 1; ; attempt++ {
		err := c.Handle(ctx, msg)
		if err == nil {
			return
		}
		if !retryable(err) || attempt >= c.maxAttempts {
			c.logg.Error(logCtx, "notification dropped", err)
			return
		}
		c.logg.Warn(logCtx, fmt.Sprintf("notification attempt %d failed: %v", attempt, err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
}

// Handle decodes one message and sends its email. A redelivered event id is
// skipped. A failed send releases the claim so the retry can send again.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	eventType := enums.OutboxEventType(pkgkafka.HeaderValue(msg.Headers, pkgkafka.HeaderEventType))
	resolved, err := c.registry.DecodeMessage(eventType, msg.Value)
	if err != nil {
		return err
	}
	eventID := resolved.Envelope.EventID
	if eventID == "" {
		eventID = pkgkafka.HeaderValue(msg.Headers, pkgkafka.HeaderEventID)
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   eventID,
		"event_type": resolved.Descriptor.EventType,
	})

	messages, err := c.build(ctx, resolved.Payload)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		c.logg.Info(logCtx, "event has no recipients")
		return nil
	}

	claimed, err := c.idempotency.Claim(ctx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var sendErr error
	for _, m := range messages {
		if err := c.sender.Send(ctx, m); err != nil {
			sendErr = multierr.Append(sendErr, fmt.Errorf("send to %s: %w", m.To, err))
		}
	}
	if sendErr != nil {
		if err := c.idempotency.Release(ctx, consumerName, eventID); err != nil {
			sendErr = multierr.Append(sendErr, err)
		}
		return sendErr
	}

	c.logg.Info(c.logg.WithField(logCtx, "recipients", len(messages)), "notification sent")
	return nil
}

func (c *Consumer) build(ctx context.Context, payload interface{}) ([]mail.Message, error) {
	switch evt := payload.(type) {
	case *payloads.ReservationCreatedEvent:
		return single(reservationConfirmation(evt, c.restaurant.Name)), nil
	case *payloads.ReservationCancelledEvent:
		return single(reservationCancellation(evt, c.restaurant.Name)), nil
	case *payloads.UserRegisteredEvent:
		return single(accountCreated(evt)), nil
	case *payloads.InventoryLowStockEvent:
		return c.lowStockMessages(ctx, evt)
	default:
		return nil, nil
	}
}

func (c *Consumer) lowStockMessages(ctx context.Context, evt *payloads.InventoryLowStockEvent) ([]mail.Message, error) {
	roles := make([]enums.Role, 0, len(evt.Roles))
	for _, raw := range evt.Roles {
		role, err := enums.ParseRole(raw)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, nil
	}
	users, err := c.recipients.ListActiveByRoles(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	itemURL := strings.TrimRight(c.restaurant.PublicBaseURL, "/") + "/api/v1/inventory/" + evt.ItemID.String()
	subject, body := lowStockAlert(evt, itemURL)
	out := make([]mail.Message, 0, len(users))
	for _, u := range users {
		out = append(out, mail.Message{To: u.Email, ToName: u.DisplayName, Subject: subject, Body: body})
	}
	return out, nil
}

func retryable(err error) bool {
	if registry.IsNonRetryable(err) {
		return false
	}
	var delivery *mail.DeliveryError
	if errors.As(err, &delivery) {
		return delivery.Retryable()
	}
	return true
}

func single(m mail.Message) []mail.Message {
	if strings.TrimSpace(m.To) == "" {
		return nil
	}
	return []mail.Message{m}
}
