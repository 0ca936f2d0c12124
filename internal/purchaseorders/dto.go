package purchaseorders

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineInput is one submitted line. A nil item id marks an empty form row.
type LineInput struct {
	InventoryItemID *uuid.UUID      `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Cost            decimal.Decimal `json:"cost"`
}

// OrderInput is the create/update form. Any total sent by the client is
// ignored and recomputed.
type OrderInput struct {
	Title        string      `json:"title" validate:"max=200"`
	SupplierID   *uuid.UUID  `json:"supplier_id,omitempty"`
	Status       string      `json:"status"`
	DeliveryDate string      `json:"delivery_date"`
	Lines        []LineInput `json:"lines"`
	// Total is accepted so form posts decode, and is never read.
	Total *decimal.Decimal `json:"total,omitempty"`
}

type LineDTO struct {
	ID              uuid.UUID       `json:"id"`
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Cost            decimal.Decimal `json:"cost"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

type OrderDTO struct {
	ID           uuid.UUID                 `json:"id"`
	Title        string                    `json:"title"`
	SupplierID   *uuid.UUID                `json:"supplier_id,omitempty"`
	SupplierName string                    `json:"supplier_name,omitempty"`
	Status       enums.PurchaseOrderStatus `json:"status"`
	DeliveryDate *types.Date               `json:"delivery_date,omitempty"`
	Total        decimal.Decimal           `json:"total"`
	ReceivedAt   *time.Time                `json:"received_at,omitempty"`
	Lines        []LineDTO                 `json:"lines,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

func FromModel(m models.PurchaseOrder) OrderDTO {
	dto := OrderDTO{
		ID:         m.ID,
		Title:      m.Title,
		SupplierID: m.SupplierID,
		Status:     m.Status,
		Total:      m.Total,
		ReceivedAt: m.ReceivedAt,
		CreatedAt:  m.CreatedAt,
	}
	if !m.DeliveryDate.IsZero() {
		date := m.DeliveryDate
		dto.DeliveryDate = &date
	}
	if m.Supplier != nil {
		dto.SupplierName = m.Supplier.Name
	}
	for _, l := range m.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:              l.ID,
			InventoryItemID: l.InventoryItemID,
			Name:            l.Name,
			Quantity:        l.Quantity,
			Cost:            l.Cost,
			LineTotal:       l.Quantity.Mul(l.Cost),
		})
	}
	return dto
}

// Total is Σ quantity×cost rounded half-up to cents.
func Total(lines []models.PurchaseOrderLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Quantity.Mul(l.Cost))
	}
	return sum.Round(2)
}

type ListParams struct {
	Status string
	Limit  int
	Cursor string
}

// QuickPOInput drafts an order for one item. SupplierID overrides the item's
// own supplier when set.
type QuickPOInput struct {
	Quantity   decimal.Decimal `json:"quantity"`
	SupplierID *uuid.UUID      `json:"supplier_id,omitempty"`
}

type QuickPOResult struct {
	Message string    `json:"message"`
	POID    uuid.UUID `json:"po_id"`
	POURL   string    `json:"po_url"`
}
