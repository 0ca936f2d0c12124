package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "chef@bistro.test",
		PasswordHash: "hash",
		DisplayName:  "Chef",
		Role:         enums.RoleKitchen,
	})
	require.NoError(t, err)
	require.True(t, created.IsActive)

	byEmail, err := repo.FindByEmail(ctx, "chef@bistro.test")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, created.ID, now))
	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.LastLoginAt)

	dto := FromModel(byID)
	require.Equal(t, "Chef", dto.DisplayName)
	require.Equal(t, enums.RoleKitchen, dto.Role)
}

func TestListActiveByRoles(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	inactive := false

	for _, dto := range []CreateUserDTO{
		{Email: "b-manager@bistro.test", PasswordHash: "h", DisplayName: "M", Role: enums.RoleManager},
		{Email: "a-stock@bistro.test", PasswordHash: "h", DisplayName: "S", Role: enums.RoleInventory},
		{Email: "old-stock@bistro.test", PasswordHash: "h", DisplayName: "O", Role: enums.RoleInventory, IsActive: &inactive},
		{Email: "guest@bistro.test", PasswordHash: "h", DisplayName: "G", Role: enums.RoleCustomer},
	} {
		_, err := repo.Create(ctx, dto)
		require.NoError(t, err)
	}

	rows, err := repo.ListActiveByRoles(ctx, []enums.Role{enums.RoleInventory, enums.RoleManager})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "a-stock@bistro.test", rows[0].Email)
	require.Equal(t, "b-manager@bistro.test", rows[1].Email)

	none, err := repo.ListActiveByRoles(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRepositoryNormalizesEmail(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Host@Bistro.Test ",
		PasswordHash: "hash",
		DisplayName:  "Host",
		Role:         enums.RoleWaiter,
	})
	require.NoError(t, err)
	require.Equal(t, "host@bistro.test", created.Email)

	found, err := repo.FindByEmail(ctx, "HOST@bistro.test")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
}

func TestRepositoryUpdateMissingUser(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	err := repo.UpdatePasswordHash(context.Background(), uuid.New(), "hash")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryStoresInactiveUsersAsInactive(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()
	inactive := false

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "former@bistro.test",
		PasswordHash: "h",
		DisplayName:  "Former",
		Role:         enums.RoleWaiter,
		IsActive:     &inactive,
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.False(t, stored.CreatedAt.IsZero())
}
