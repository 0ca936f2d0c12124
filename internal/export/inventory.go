// Package export writes inventory snapshots as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
)

// Header is the fixed first row of every inventory export.
var Header = []string{"ID", "Item Name", "SKU", "Quantity", "Unit", "Cost", "Reorder Level", "Location", "Supplier"}

// Filename names the export after the calendar day it was taken.
func Filename(now time.Time) string {
	return fmt.Sprintf("inventory_export_%s.csv", now.Format("2006-01-02"))
}

type Exporter struct {
	db *gorm.DB
}

func NewExporter(conn *gorm.DB) *Exporter {
	return &Exporter{db: conn}
}

// WriteInventory streams every item ordered by title.
func (e *Exporter) WriteInventory(ctx context.Context, w io.Writer) error {
	rows, err := inventory.NewRepository(e.db).List(ctx, inventory.ListFilter{OrderBy: "title"})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return WriteCSV(w, rows)
}

func WriteCSV(w io.Writer, items []models.InventoryItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, item := range items {
		supplier := ""
		if item.Supplier != nil {
			supplier = item.Supplier.Name
		}
		record := []string{
			item.ID.String(),
			item.Title,
			item.SKU,
			item.Quantity.String(),
			item.Unit,
			item.Cost.StringFixed(2),
			item.ReorderLevel.String(),
			item.Location,
			supplier,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
