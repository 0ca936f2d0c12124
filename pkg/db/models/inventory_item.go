package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem tracks a stocked ingredient or supply.
type InventoryItem struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Title        string              `gorm:"column:title;not null"`
	SKU          string              `gorm:"column:sku;not null;default:''"`
	Quantity     decimal.Decimal     `gorm:"column:quantity;type:numeric(12,3);not null;default:0"`
	Unit         string              `gorm:"column:unit;not null;default:''"`
	ReorderLevel decimal.Decimal     `gorm:"column:reorder_level;type:numeric(12,3);not null;default:0"`
	Cost         decimal.Decimal     `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	Location     string              `gorm:"column:location;not null;default:''"`
	SupplierID   *uuid.UUID          `gorm:"column:supplier_id;type:uuid"`
	Supplier     *Supplier           `gorm:"foreignKey:SupplierID"`
	Categories   []InventoryCategory `gorm:"many2many:inventory_item_categories;joinForeignKey:ItemID;joinReferences:CategoryID"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InventoryCategory groups items for filtering and valuation.
type InventoryCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *InventoryCategory) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// InventoryLog is one append-only quantity change entry.
type InventoryLog struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ItemID           uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	ActorID          *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	ActorName        string          `gorm:"column:actor_name;not null"`
	PreviousQuantity decimal.Decimal `gorm:"column:previous_quantity;type:numeric(12,3);not null"`
	NewQuantity      decimal.Decimal `gorm:"column:new_quantity;type:numeric(12,3);not null"`
	Reason           string          `gorm:"column:reason;not null;default:''"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *InventoryLog) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
