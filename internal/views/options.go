// Package views builds the embeddable inventory view models and renders them
// to HTML.
package views

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
)

const (
	defaultTableLimit = 20
	defaultCardLimit  = 10
)

type TableOptions struct {
	Category     string
	Limit        int
	OrderBy      string
	Order        string
	ShowStock    bool
	ShowSKU      bool
	LowStockOnly bool
}

type CardOptions struct {
	Category     string
	Limit        int
	ShowSupplier bool
	ShowLocation bool
	ShowCost     bool
}

// ParseTableOptions reads the table view query. Unknown flag values fall back
// to the default.
func ParseTableOptions(q url.Values) TableOptions {
	return TableOptions{
		Category:     strings.TrimSpace(q.Get("category")),
		Limit:        limitOr(q.Get("limit"), defaultTableLimit),
		OrderBy:      strOr(q.Get("orderby"), "title"),
		Order:        strings.ToUpper(strOr(q.Get("order"), "ASC")),
		ShowStock:    flag(q.Get("show_stock"), true),
		ShowSKU:      flag(q.Get("show_sku"), true),
		LowStockOnly: flag(q.Get("low_stock_only"), false),
	}
}

func ParseCardOptions(q url.Values) CardOptions {
	return CardOptions{
		Category:     strings.TrimSpace(q.Get("category")),
		Limit:        limitOr(q.Get("limit"), defaultCardLimit),
		ShowSupplier: flag(q.Get("show_supplier"), true),
		ShowLocation: flag(q.Get("show_location"), true),
		ShowCost:     flag(q.Get("show_cost"), false),
	}
}

// ListParams maps the table options onto an inventory listing.
func (o TableOptions) ListParams() inventory.ListParams {
	return inventory.ListParams{
		Category:     o.Category,
		Limit:        o.Limit,
		OrderBy:      o.OrderBy,
		Order:        o.Order,
		LowStockOnly: o.LowStockOnly,
	}
}

func (o CardOptions) ListParams() inventory.ListParams {
	return inventory.ListParams{Category: o.Category, Limit: o.Limit, OrderBy: "title"}
}

func flag(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1":
		return true
	case "no", "false", "0":
		return false
	default:
		return def
	}
}

// limitOr falls back to def for a missing or non-positive value and caps the
// rest at pagination.MaxLimit.
func limitOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, pagination.MaxLimit)
}

func strOr(raw, def string) string {
	if v := strings.TrimSpace(raw); v != "" {
		return v
	}
	return def
}
