package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	assert.Equal(t, "inventory_export_2026-02-14.csv", Filename(time.Date(2026, 2, 14, 23, 0, 0, 0, time.UTC)))
}

func TestWriteInventory(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	supplier := models.Supplier{Name: "Harbor Fish"}
	require.NoError(t, client.DB().Create(&supplier).Error)
	for _, item := range []models.InventoryItem{
		{Title: "Salmon, whole", SKU: "FS-2", Quantity: decimal.RequireFromString("4.5"), Unit: "kg", Cost: decimal.RequireFromString("18"), ReorderLevel: decimal.RequireFromString("2"), SupplierID: &supplier.ID},
		{Title: "Anchovies", Quantity: decimal.RequireFromString("12"), Unit: "tin", Cost: decimal.RequireFromString("3.25"), Location: "Dry store"},
	} {
		item := item
		require.NoError(t, client.DB().Omit("Supplier").Create(&item).Error)
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(client.DB()).WriteInventory(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ID", "Item Name", "SKU", "Quantity", "Unit", "Cost", "Reorder Level", "Location", "Supplier"}, records[0])
	assert.Equal(t, "Anchovies", records[1][1])
	assert.Equal(t, "3.25", records[1][5])
	assert.Equal(t, "Dry store", records[1][7])
	assert.Equal(t, "Salmon, whole", records[2][1])
	assert.Equal(t, "4.5", records[2][3])
	assert.Equal(t, "Harbor Fish", records[2][8])
}
