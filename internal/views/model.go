package views

import (
	"github.com/angelmondragon/bistro-backend/internal/inventory"
)

const msgNoItems = "No inventory items found."

type TableRow struct {
	Title      string `json:"title"`
	SKU        string `json:"sku,omitempty"`
	Stock      string `json:"stock,omitempty"`
	Unit       string `json:"unit"`
	StockClass string `json:"stock_class"`
}

type TableView struct {
	ShowSKU   bool       `json:"show_sku"`
	ShowStock bool       `json:"show_stock"`
	Rows      []TableRow `json:"rows"`
	Empty     string     `json:"empty,omitempty"`
}

type Card struct {
	Title      string   `json:"title"`
	Stock      string   `json:"stock"`
	StockClass string   `json:"stock_class"`
	Supplier   string   `json:"supplier,omitempty"`
	Location   string   `json:"location,omitempty"`
	Cost       string   `json:"cost,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

type CardsView struct {
	Cards []Card `json:"cards"`
	Empty string `json:"empty,omitempty"`
}

// InventoryTable projects items onto the compact table view.
func InventoryTable(items []inventory.ItemDTO, opts TableOptions) TableView {
	view := TableView{ShowSKU: opts.ShowSKU, ShowStock: opts.ShowStock, Rows: make([]TableRow, 0, len(items))}
	for _, item := range items {
		row := TableRow{Title: item.Title, Unit: item.Unit, StockClass: item.StockClass}
		if opts.ShowSKU {
			row.SKU = item.SKU
		}
		if opts.ShowStock {
			row.Stock = item.Quantity.String()
		}
		view.Rows = append(view.Rows, row)
	}
	if len(view.Rows) == 0 {
		view.Empty = msgNoItems
	}
	return view
}

// InventoryCards projects items onto the detailed card view. Cost is only
// shown when requested and the viewer may manage inventory.
func InventoryCards(items []inventory.ItemDTO, opts CardOptions, canSeeCost bool) CardsView {
	view := CardsView{Cards: make([]Card, 0, len(items))}
	for _, item := range items {
		card := Card{
			Title:      item.Title,
			Stock:      item.Quantity.String(),
			StockClass: item.StockClass,
		}
		if item.Unit != "" {
			card.Stock += " " + item.Unit
		}
		if opts.ShowSupplier {
			card.Supplier = item.SupplierName
		}
		if opts.ShowLocation {
			card.Location = item.Location
		}
		if opts.ShowCost && canSeeCost {
			card.Cost = item.Cost.StringFixed(2)
		}
		for _, c := range item.Categories {
			card.Categories = append(card.Categories, c.Name)
		}
		view.Cards = append(view.Cards, card)
	}
	if len(view.Cards) == 0 {
		view.Empty = msgNoItems
	}
	return view
}
