package rbac

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRolesCapabilities(t *testing.T) {
	reg := MustDefault()

	tests := []struct {
		role enums.Role
		caps []Capability
	}{
		{enums.RoleCustomer, []Capability{CapMakeReservations, CapRead, CapViewOwnReservations}},
		{enums.RoleWaiter, []Capability{CapCreateOrders, CapEditOrders, CapRead, CapRequestTimeOff, CapViewMenu, CapViewOwnSchedule, CapViewReservations}},
		{enums.RoleKitchen, []Capability{CapRead, CapRequestTimeOff, CapUpdateOrders, CapViewMenu, CapViewOrders, CapViewOwnSchedule}},
		{enums.RoleInventory, []Capability{CapCreatePurchaseOrder, CapManageInventory, CapRead, CapRequestTimeOff, CapViewOwnSchedule, CapViewSuppliers}},
		{enums.RoleManager, []Capability{CapDeletePosts, CapEditPosts, CapExportData, CapManageInventory, CapManageMenu, CapManageOrders, CapManageReservations, CapManageSchedules, CapManageStaff, CapRead, CapViewReports}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.caps, reg.Capabilities(tt.role))
		})
	}
}

func TestAdministratorHoldsEverything(t *testing.T) {
	reg := MustDefault()
	for _, c := range AllCapabilities() {
		assert.True(t, reg.Has(enums.RoleAdministrator, c), "administrator missing %s", c)
	}
}

func TestCustomerCannotManageInventory(t *testing.T) {
	reg := MustDefault()
	assert.False(t, reg.Has(enums.RoleCustomer, CapManageInventory))
	assert.False(t, reg.Has(enums.Role("ghost"), CapRead))
	assert.True(t, reg.HasAny(enums.RoleInventory, CapEditPosts, CapCreatePurchaseOrder))
}

func TestRolesWithLowStockRecipients(t *testing.T) {
	reg := MustDefault()
	assert.Equal(t,
		[]enums.Role{enums.RoleInventory, enums.RoleManager, enums.RoleAdministrator},
		reg.RolesWith(CapManageInventory),
	)
}

func TestLoginPaths(t *testing.T) {
	reg := MustDefault()
	assert.Equal(t, "/waiter-dashboard/", reg.LoginPath(enums.RoleWaiter))
	assert.Equal(t, "/kitchen-display/", reg.LoginPath(enums.RoleKitchen))
	assert.Equal(t, "/inventory-management/", reg.LoginPath(enums.RoleInventory))
	assert.Equal(t, "/my-account/", reg.LoginPath(enums.RoleCustomer))
	assert.Equal(t, "/", reg.LoginPath(enums.Role("unknown")))
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]RoleDefinition{
		{Role: enums.RoleCustomer},
		{Role: enums.RoleCustomer},
	})
	require.Error(t, err)

	_, err = NewRegistry([]RoleDefinition{{Role: enums.Role("chef")}})
	require.Error(t, err)
}

func TestActorCan(t *testing.T) {
	reg := MustDefault()
	manager := Actor{UserID: uuid.New(), Role: enums.RoleManager}
	if !manager.Can(reg, CapViewReports) {
		t.Fatalf("manager should view reports")
	}
	if manager.Can(reg, CapMakeReservations) {
		t.Fatalf("manager does not book tables")
	}
	anonymous := Actor{Role: enums.RoleAdministrator}
	if anonymous.Can(reg, CapRead) {
		t.Fatalf("actor without user id must not pass")
	}
	if manager.Can(nil, CapRead) {
		t.Fatalf("nil registry must deny")
	}
}
