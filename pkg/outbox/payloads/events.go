package payloads

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationCreatedEvent carries what the confirmation email needs.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Email         string          `json:"email"`
	CustomerName  string          `json:"customer_name"`
	Date          types.Date      `json:"date"`
	Time          types.ClockTime `json:"time"`
	TableNumber   int             `json:"table_number"`
	Guests        int             `json:"guests"`
}

type ReservationCancelledEvent struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Email         string     `json:"email"`
	CustomerName  string     `json:"customer_name"`
	Date          types.Date `json:"date"`
	TableNumber   int        `json:"table_number"`
	CancelledAt   time.Time  `json:"cancelled_at"`
}

// InventoryLowStockEvent is raised after a save leaves an item at or below its
// reorder level. Roles are resolved to recipients by the consumer.
type InventoryLowStockEvent struct {
	ItemID       uuid.UUID       `json:"item_id"`
	Title        string          `json:"title"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Unit         string          `json:"unit"`
	Roles        []string        `json:"roles"`
}

type ReceivedLine struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
}

type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID      `json:"purchase_order_id"`
	Title           string         `json:"title"`
	Lines           []ReceivedLine `json:"lines"`
	ReceivedAt      time.Time      `json:"received_at"`
}

// UserRegisteredEvent carries the generated password to the welcome email.
// Published rows are pruned by the outbox retention job.
type UserRegisteredEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	TempPassword string    `json:"temp_password"`
	LoginURL     string    `json:"login_url"`
}
