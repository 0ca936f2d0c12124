package inventory

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StockClassLow = "low-stock"
	StockClassOK  = "in-stock"
)

// IsLowStock reports whether quantity has reached the reorder level.
// The comparison is inclusive.
func IsLowStock(quantity, reorderLevel decimal.Decimal) bool {
	return quantity.LessThanOrEqual(reorderLevel)
}

func StockClass(quantity, reorderLevel decimal.Decimal) string {
	if IsLowStock(quantity, reorderLevel) {
		return StockClassLow
	}
	return StockClassOK
}

// ItemInput is the create/update form for an item.
type ItemInput struct {
	Title        string          `json:"title" validate:"required,max=200"`
	SKU          string          `json:"sku" validate:"max=100"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" validate:"max=50"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Cost         decimal.Decimal `json:"cost"`
	Location     string          `json:"location" validate:"max=200"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	CategoryIDs  []uuid.UUID     `json:"category_ids,omitempty"`
}

type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

type ItemDTO struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	SKU          string          `json:"sku"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Cost         decimal.Decimal `json:"cost"`
	Location     string          `json:"location"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Categories   []CategoryDTO   `json:"categories"`
	IsLowStock   bool            `json:"is_low_stock"`
	StockClass   string          `json:"stock_class"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func FromModel(m models.InventoryItem) ItemDTO {
	dto := ItemDTO{
		ID:           m.ID,
		Title:        m.Title,
		SKU:          m.SKU,
		Quantity:     m.Quantity,
		Unit:         m.Unit,
		ReorderLevel: m.ReorderLevel,
		Cost:         m.Cost,
		Location:     m.Location,
		SupplierID:   m.SupplierID,
		Categories:   make([]CategoryDTO, 0, len(m.Categories)),
		IsLowStock:   IsLowStock(m.Quantity, m.ReorderLevel),
		StockClass:   StockClass(m.Quantity, m.ReorderLevel),
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Supplier != nil {
		dto.SupplierName = m.Supplier.Name
	}
	for _, c := range m.Categories {
		dto.Categories = append(dto.Categories, categoryDTO(c))
	}
	return dto
}

func categoryDTO(c models.InventoryCategory) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

// ListParams are the raw listing options accepted from the API.
type ListParams struct {
	Category     string
	Limit        int
	OrderBy      string
	Order        string
	LowStockOnly bool
}

type AdjustInput struct {
	NewQuantity *decimal.Decimal `json:"new_quantity" validate:"required"`
	Reason      string          `json:"reason" validate:"max=500"`
}

type AdjustResult struct {
	Message     string          `json:"message"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
}

// LogDTO is one rendered change log entry.
type LogDTO struct {
	ID               uuid.UUID       `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	ActorName        string          `json:"actor_name"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	NewQuantity      decimal.Decimal `json:"new_quantity"`
	Change           decimal.Decimal `json:"change"`
	ChangeDisplay    string          `json:"change_display"`
	ChangeClass      string          `json:"change_class"`
	Reason           string          `json:"reason"`
}

// LogFromModel renders the signed change: "+5 kg", "-3 kg" or "0 kg".
func LogFromModel(m models.InventoryLog, unit string) LogDTO {
	change := m.NewQuantity.Sub(m.PreviousQuantity)
	display, class := change.String(), ""
	switch change.Sign() {
	case 1:
		display, class = "+"+display, "positive"
	case -1:
		class = "negative"
	}
	if unit != "" {
		display += " " + unit
	}
	return LogDTO{
		ID:               m.ID,
		CreatedAt:        m.CreatedAt,
		ActorName:        m.ActorName,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Change:           change,
		ChangeDisplay:    display,
		ChangeClass:      class,
		Reason:           m.Reason,
	}
}

type SearchResult struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Cost     decimal.Decimal `json:"cost"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"max=100"`
}
