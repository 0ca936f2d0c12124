package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmitWritesEnvelope(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, logger.Nop())
	ctx := context.Background()

	aggregateID := uuid.New()
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
			AggregateID:   aggregateID,
			Actor:         &outbox.ActorRef{UserID: uuid.New(), Role: "restaurant_customer"},
			Data:          map[string]any{"table_number": 3},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, aggregateID, rows[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, string(enums.EventReservationCancelled), envelope.EventType)
	require.JSONEq(t, `{"table_number":3}`, string(envelope.Data))
	require.Equal(t, rows[0].ID.String(), envelope.EventID, "envelope id is the row id")
}

func TestEmitRejectsUnknownType(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{EventType: "nope", AggregateID: uuid.New()})
	})
	require.Error(t, err)
	require.Error(t, svc.Emit(ctx, nil, outbox.DomainEvent{}))

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCancelled,
			AggregateType: enums.AggregateReservation,
		})
	})
	require.ErrorContains(t, err, "aggregate id")
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()

	first := models.OutboxEvent{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateUser, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateUser, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.Insert(tx, first); err != nil {
			return err
		}
		return repo.Insert(tx, second)
	}))

	var fetched []models.OutboxEvent
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Len(t, fetched, 2)

	failedID := fetched[1].ID
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, fetched[0].ID); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, fetched[1].ID, errors.New("broker down")); err != nil {
			return err
		}
		msg := "gave up"
		if err := dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       fetched[1].ID,
			EventType:     fetched[1].EventType,
			AggregateType: fetched[1].AggregateType,
			AggregateID:   fetched[1].AggregateID,
			Payload:       fetched[1].Payload,
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &msg,
		}); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, fetched[1].ID, errors.New("gave up"), 3)
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		fetched, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		return err
	}))
	require.Empty(t, fetched, "published and terminal rows must not be fetched again")

	parked, err := dlq.FindByEventID(ctx, failedID)
	require.NoError(t, err)
	require.NotNil(t, parked)
	require.Equal(t, "gave up", *parked.ErrorMessage)

	missing, err := dlq.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, parked.ErrorReason)
	require.False(t, parked.FailedAt.IsZero(), "failed_at defaults to insert time")

	kept, err := dlq.DeleteFailedBefore(client.DB(), time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, kept)
	dropped, err := dlq.DeleteFailedBefore(client.DB(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, dropped)
}

func TestDeletePublishedBefore(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	rows := []models.OutboxEvent{
		{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateUser, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &old},
		{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateUser, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &recent},
		{EventType: enums.EventUserRegistered, AggregateType: enums.AggregateUser, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, client.DB().Create(&rows).Error)

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&remaining).Error)
	require.EqualValues(t, 2, remaining)
}
