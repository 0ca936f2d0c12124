package models

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder is an order placed with a supplier. ReceivedAt marks that the
// lines were already added to stock.
type PurchaseOrder struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	Title        string                    `gorm:"column:title;not null"`
	SupplierID   *uuid.UUID                `gorm:"column:supplier_id;type:uuid"`
	Supplier     *Supplier                 `gorm:"foreignKey:SupplierID"`
	Status       enums.PurchaseOrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryDate types.Date                `gorm:"column:delivery_date;type:date"`
	Total        decimal.Decimal           `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	ReceivedAt   *time.Time                `gorm:"column:received_at"`
	CreatedBy    *uuid.UUID                `gorm:"column:created_by;type:uuid"`
	Lines        []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PurchaseOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

type PurchaseOrderLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	InventoryItemID uuid.UUID       `gorm:"column:inventory_item_id;type:uuid;not null"`
	Name            string          `gorm:"column:name;not null"`
	Quantity        decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null"`
	Cost            decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	Position        int             `gorm:"column:position;not null;default:0"`
}

func (l *PurchaseOrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
