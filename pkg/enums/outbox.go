package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateReservation   OutboxAggregateType = "reservation"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregatePurchaseOrder OutboxAggregateType = "purchase_order"
	AggregateUser          OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateReservation,
	AggregateInventoryItem,
	AggregatePurchaseOrder,
	AggregateUser,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationCancelled OutboxEventType = "reservation_cancelled"
	EventInventoryLowStock    OutboxEventType = "inventory_low_stock"
	EventPurchaseOrderRecv    OutboxEventType = "purchase_order_received"
	EventUserRegistered       OutboxEventType = "user_registered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationCreated,
	EventReservationCancelled,
	EventInventoryLowStock,
	EventPurchaseOrderRecv,
	EventUserRegistered,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
