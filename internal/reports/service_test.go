package reports

import (
	"context"
	"testing"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSummarizeGroupsAndSorts(t *testing.T) {
	produce := models.InventoryCategory{Name: "Produce"}
	pantry := models.InventoryCategory{Name: "Pantry"}
	items := []models.InventoryItem{
		{Title: "Tomatoes", Quantity: d("10"), Cost: d("2"), Categories: []models.InventoryCategory{produce}},
		{Title: "Olive oil", Quantity: d("2"), Cost: d("15"), Categories: []models.InventoryCategory{produce, pantry}},
		{Title: "Napkins", Quantity: d("5"), Cost: d("2")},
	}
	v := Summarize(items)
	require.True(t, v.TotalValue.Equal(d("60")))
	require.Equal(t, 3, v.ItemCount)
	require.Len(t, v.Categories, 3)

	assert.Equal(t, "Produce", v.Categories[0].Name)
	assert.True(t, v.Categories[0].Value.Equal(d("50")))
	assert.True(t, v.Categories[0].Percentage.Equal(d("83.33")))
	assert.Equal(t, "Pantry", v.Categories[1].Name)
	assert.Equal(t, Uncategorized, v.Categories[2].Name)
	assert.True(t, v.Categories[2].Percentage.Equal(d("16.67")))
}

func TestSummarizeZeroTotal(t *testing.T) {
	v := Summarize([]models.InventoryItem{
		{Title: "Free samples", Quantity: d("4"), Cost: d("0")},
		{Title: "Empty", Quantity: d("0"), Cost: d("3"), Categories: []models.InventoryCategory{{Name: "Misc"}}},
	})
	require.True(t, v.TotalValue.IsZero())
	for _, c := range v.Categories {
		assert.True(t, c.Percentage.IsZero(), c.Name)
	}
}

func TestDashboard(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	inv, err := inventory.NewService(inventory.ServiceParams{
		DB: client, Reader: client.DB(), Outbox: outbox.NewService(outbox.NewRepository(client.DB()), nil),
	})
	require.NoError(t, err)
	actor := rbac.Actor{UserID: uuid.Nil, Role: enums.RoleAdministrator}

	for _, in := range []inventory.ItemInput{
		{Title: "Yeast", Quantity: d("1"), ReorderLevel: d("2"), Unit: "kg"},
		{Title: "Cream", Quantity: d("3"), ReorderLevel: d("3"), Unit: "L"},
		{Title: "Rice", Quantity: d("30"), ReorderLevel: d("5"), Unit: "kg"},
	} {
		_, err := inv.Create(ctx, actor, in)
		require.NoError(t, err)
	}
	require.NoError(t, client.DB().Create(&models.PurchaseOrder{Title: "Open", Status: enums.PurchaseOrderStatusPending}).Error)
	require.NoError(t, client.DB().Create(&models.PurchaseOrder{Title: "Done", Status: enums.PurchaseOrderStatusReceived}).Error)

	svc, err := NewService(client.DB())
	require.NoError(t, err)
	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dash.TotalItems)
	assert.Equal(t, int64(2), dash.LowStockCount)
	assert.Equal(t, int64(1), dash.PendingPurchases)
	require.Len(t, dash.LowStockItems, 2)
	assert.Equal(t, "Cream", dash.LowStockItems[0].Title)
	assert.Equal(t, "3/3 L", dash.LowStockItems[0].Summary)

	val, err := svc.Valuation(ctx)
	require.NoError(t, err)
	require.Len(t, val.RecentOrders, 2)
}
