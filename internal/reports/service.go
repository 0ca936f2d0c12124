// Package reports builds the inventory dashboard and valuation summaries.
package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/purchaseorders"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
)

const (
	dashboardLowStockLimit = 5
	recentOrdersLimit      = 5
	Uncategorized          = "Uncategorized"
)

type LowStockLine struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type Dashboard struct {
	TotalItems       int64          `json:"total_items"`
	LowStockCount    int64          `json:"low_stock_count"`
	PendingPurchases int64          `json:"pending_purchase_orders"`
	LowStockItems    []LowStockLine `json:"low_stock_items"`
}

type CategoryValue struct {
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

type RecentOrder struct {
	ID     string                    `json:"id"`
	Title  string                    `json:"title"`
	Status enums.PurchaseOrderStatus `json:"status"`
	Total  decimal.Decimal           `json:"total"`
}

type Valuation struct {
	TotalValue   decimal.Decimal `json:"total_value"`
	ItemCount    int             `json:"item_count"`
	Categories   []CategoryValue `json:"categories"`
	RecentOrders []RecentOrder   `json:"recent_orders"`
}

type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Valuation(ctx context.Context) (*Valuation, error)
}

type service struct {
	db *gorm.DB
}

func NewService(conn *gorm.DB) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &service{db: conn}, nil
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	inv := inventory.NewRepository(s.db)
	total, err := inv.CountAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count inventory")
	}
	low, err := inv.CountLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock")
	}
	pending, err := purchaseorders.NewRepository(s.db).CountByStatus(ctx, enums.PurchaseOrderStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending purchase orders")
	}
	rows, err := inv.List(ctx, inventory.ListFilter{LowStockOnly: true, OrderBy: "title", Limit: dashboardLowStockLimit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}

	out := &Dashboard{
		TotalItems:       total,
		LowStockCount:    low,
		PendingPurchases: pending,
		LowStockItems:    make([]LowStockLine, 0, len(rows)),
	}
	for _, row := range rows {
		out.LowStockItems = append(out.LowStockItems, LowStockLine{
			ID:      row.ID.String(),
			Title:   row.Title,
			Summary: StockSummary(row),
		})
	}
	return out, nil
}

// StockSummary renders "{quantity}/{reorder} {unit}".
func StockSummary(item models.InventoryItem) string {
	s := item.Quantity.String() + "/" + item.ReorderLevel.String()
	if item.Unit != "" {
		s += " " + item.Unit
	}
	return s
}

func (s *service) Valuation(ctx context.Context) (*Valuation, error) {
	items, err := inventory.NewRepository(s.db).List(ctx, inventory.ListFilter{OrderBy: "title"})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	orders, err := purchaseorders.NewRepository(s.db).Recent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent purchase orders")
	}

	out := Summarize(items)
	out.RecentOrders = make([]RecentOrder, 0, len(orders))
	for _, po := range orders {
		out.RecentOrders = append(out.RecentOrders, RecentOrder{
			ID:     po.ID.String(),
			Title:  po.Title,
			Status: po.Status,
			Total:  po.Total,
		})
	}
	return out, nil
}

// Summarize totals stock value overall and per category. An item in several
// categories counts toward each of them, so category values can add up to
// more than the total.
func Summarize(items []models.InventoryItem) *Valuation {
	total := decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	for _, item := range items {
		value := item.Quantity.Mul(item.Cost)
		total = total.Add(value)
		if len(item.Categories) == 0 {
			byCategory[Uncategorized] = byCategory[Uncategorized].Add(value)
			continue
		}
		for _, c := range item.Categories {
			byCategory[c.Name] = byCategory[c.Name].Add(value)
		}
	}

	hundred := decimal.NewFromInt(100)
	cats := make([]CategoryValue, 0, len(byCategory))
	for name, value := range byCategory {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = value.Div(total).Mul(hundred).Round(2)
		}
		cats = append(cats, CategoryValue{Name: name, Value: value.Round(2), Percentage: pct})
	}
	sort.Slice(cats, func(i, j int) bool {
		if !cats[i].Value.Equal(cats[j].Value) {
			return cats[i].Value.GreaterThan(cats[j].Value)
		}
		return cats[i].Name < cats[j].Name
	})

	return &Valuation{
		TotalValue: total.Round(2),
		ItemCount:  len(items),
		Categories: cats,
	}
}
