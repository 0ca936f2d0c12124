package auth

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/security"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesCustomerAndQueuesEmail(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	svc, err := NewRegisterService(RegisterServiceParams{
		DB:         client,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
		Restaurant: config.RestaurantConfig{PublicBaseURL: "https://bistro.test/"},
		GeneratePassword: func(int) (string, error) {
			return "Temp-Pass-12", nil
		},
	})
	require.NoError(t, err)

	resp, err := svc.Register(ctx, RegisterRequest{Email: "New@Guest.test", Name: " Nora "})
	require.NoError(t, err)
	require.True(t, resp.Created)
	require.Equal(t, msgUserRegistered, resp.Message)

	user, err := users.NewRepository(client.DB()).FindByID(ctx, resp.UserID)
	require.NoError(t, err)
	require.Equal(t, "new@guest.test", user.Email)
	require.Equal(t, "Nora", user.DisplayName)
	require.Equal(t, enums.RoleCustomer, user.Role)
	ok, err := security.VerifyPassword("Temp-Pass-12", user.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventUserRegistered, rows[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Contains(t, string(envelope.Data), `"login_url":"https://bistro.test/login"`)
	require.Contains(t, string(envelope.Data), `"temp_password":"Temp-Pass-12"`)
}

func TestRegisterExistingEmailReturnsUser(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()

	existing, err := users.NewRepository(client.DB()).Create(ctx, users.CreateUserDTO{
		Email: "known@guest.test", PasswordHash: "h", DisplayName: "Known", Role: enums.RoleCustomer,
	})
	require.NoError(t, err)

	svc, err := NewRegisterService(RegisterServiceParams{
		DB:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
	})
	require.NoError(t, err)

	resp, err := svc.Register(ctx, RegisterRequest{Email: "KNOWN@guest.test", Name: "Again"})
	require.NoError(t, err)
	require.False(t, resp.Created)
	require.Equal(t, existing.ID, resp.UserID)
	require.Equal(t, msgUserExists, resp.Message)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRegisterValidation(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{
		DB:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Email: "not-an-email", Name: "x"})
	require.Error(t, err)
	_, err = svc.Register(context.Background(), RegisterRequest{Email: "a@b.test", Name: "  "})
	require.Error(t, err)
}
