package mail

import (
	"context"
	"errors"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bistro-backend/pkg/config"
)

type fakeSendgrid struct {
	resp  *sendgridResponse
	err   error
	email *sgmail.SGMailV3
}

func (f *fakeSendgrid) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*sendgridResponse, error) {
	f.email = email
	return f.resp, f.err
}

func TestSendGridSenderBuildsSingleEmail(t *testing.T) {
	fake := &fakeSendgrid{resp: &sendgridResponse{StatusCode: 202}}
	sender := NewSendGridSender(config.SendgridConfig{APIKey: "k", DefaultFrom: "no-reply@bistro.test", FromName: "Bistro"})
	sender.client = fake

	err := sender.Send(context.Background(), Message{To: "guest@example.com", ToName: "Guest", Subject: "Your Reservation Confirmation", Body: "see you"})
	require.NoError(t, err)
	require.NotNil(t, fake.email)
	require.Equal(t, "Your Reservation Confirmation", fake.email.Subject)
	require.Equal(t, "no-reply@bistro.test", fake.email.From.Address)
	require.Len(t, fake.email.Personalizations, 1)
	require.Equal(t, "guest@example.com", fake.email.Personalizations[0].To[0].Address)
}

func TestSendGridSenderErrors(t *testing.T) {
	sender := NewSendGridSender(config.SendgridConfig{APIKey: "k", DefaultFrom: "no-reply@bistro.test"})

	sender.client = &fakeSendgrid{resp: &sendgridResponse{StatusCode: 503, Body: "busy"}}
	err := sender.Send(context.Background(), Message{To: "a@example.com", Subject: "s"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	require.True(t, delivery.Retryable())

	sender.client = &fakeSendgrid{resp: &sendgridResponse{StatusCode: 400}}
	err = sender.Send(context.Background(), Message{To: "a@example.com", Subject: "s"})
	require.ErrorAs(t, err, &delivery)
	require.False(t, delivery.Retryable())

	sender.client = &fakeSendgrid{err: errors.New("dial")}
	require.Error(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "s"}))
}

func TestMessageValidate(t *testing.T) {
	require.Error(t, Message{Subject: "x"}.Validate())
	require.Error(t, Message{To: "not-an-email", Subject: "x"}.Validate())
	require.Error(t, Message{To: "a@example.com"}.Validate())
	require.NoError(t, Message{To: "a@example.com", Subject: "x"}.Validate())
}

func TestNewSenderFallsBackToLog(t *testing.T) {
	sender := NewSender(config.SendgridConfig{}, nil)
	_, ok := sender.(*LogSender)
	require.True(t, ok)
	require.NoError(t, sender.Send(context.Background(), Message{To: "a@example.com", Subject: "x"}))

	_, ok = NewSender(config.SendgridConfig{APIKey: "k"}, nil).(*SendGridSender)
	require.True(t, ok)
}
