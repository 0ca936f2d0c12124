// Package registry maps outbox event types to their Kafka topic, owning
// aggregate and typed payload.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row or consumed message.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      event,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry routes reservation events to the reservations topic,
// stock and purchase order events to the inventory topic, and account events
// to the users topic.
func NewEventRegistry(cfg config.KafkaConfig) (*EventRegistry, error) {
	var missing []error
	for name, topic := range map[string]string{
		"reservations": cfg.ReservationsTopic,
		"inventory":    cfg.InventoryTopic,
		"users":        cfg.UsersTopic,
	} {
		if topic == "" {
			missing = append(missing, fmt.Errorf("%s topic is required", name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		describe[payloads.ReservationCreatedEvent](enums.EventReservationCreated, enums.AggregateReservation, cfg.ReservationsTopic),
		describe[payloads.ReservationCancelledEvent](enums.EventReservationCancelled, enums.AggregateReservation, cfg.ReservationsTopic),
		describe[payloads.InventoryLowStockEvent](enums.EventInventoryLowStock, enums.AggregateInventoryItem, cfg.InventoryTopic),
		describe[payloads.PurchaseOrderReceivedEvent](enums.EventPurchaseOrderRecv, enums.AggregatePurchaseOrder, cfg.InventoryTopic),
		describe[payloads.UserRegisteredEvent](enums.EventUserRegistered, enums.AggregateUser, cfg.UsersTopic),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.entries))
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Resolve checks an outbox row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will not change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.lookup(event.EventType)
	if err != nil {
		return nil, err
	}
	switch {
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s belongs to %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}
	envelope, err := unmarshalEnvelope(event.Payload)
	if err != nil {
		return nil, err
	}
	return decode(desc, envelope)
}

// DecodeMessage decodes a consumed message value. The envelope's event type
// wins over headerType, which only covers envelopes written without one.
func (r *EventRegistry) DecodeMessage(headerType enums.OutboxEventType, value []byte) (*ResolvedEvent, error) {
	envelope, err := unmarshalEnvelope(value)
	if err != nil {
		return nil, err
	}
	if envelope.EventType != "" {
		headerType = enums.OutboxEventType(envelope.EventType)
	}
	desc, err := r.lookup(headerType)
	if err != nil {
		return nil, err
	}
	return decode(desc, envelope)
}

func (r *EventRegistry) lookup(eventType enums.OutboxEventType) (EventDescriptor, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return EventDescriptor{}, NewNonRetryableError(fmt.Errorf("unsupported event type %q", eventType))
	}
	return desc, nil
}

func unmarshalEnvelope(raw []byte) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	return envelope, nil
}

func decode(desc EventDescriptor, envelope outbox.PayloadEnvelope) (*ResolvedEvent, error) {
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", desc.EventType))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", desc.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
