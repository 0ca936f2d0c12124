package rbac

import "github.com/angelmondragon/bistro-backend/pkg/enums"

// DefaultRoles is the role table the service boots with.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Role:        enums.RoleCustomer,
			DisplayName: "Restaurant Customer",
			LoginPath:   "/my-account/",
			Capabilities: []Capability{
				CapRead,
				CapMakeReservations,
				CapViewOwnReservations,
			},
		},
		{
			Role:        enums.RoleWaiter,
			DisplayName: "Restaurant Waiter",
			LoginPath:   "/waiter-dashboard/",
			Capabilities: []Capability{
				CapRead,
				CapViewReservations,
				CapCreateOrders,
				CapEditOrders,
				CapViewMenu,
				CapViewOwnSchedule,
				CapRequestTimeOff,
			},
		},
		{
			Role:        enums.RoleKitchen,
			DisplayName: "Kitchen Staff",
			LoginPath:   "/kitchen-display/",
			Capabilities: []Capability{
				CapRead,
				CapViewOrders,
				CapUpdateOrders,
				CapViewMenu,
				CapViewOwnSchedule,
				CapRequestTimeOff,
			},
		},
		{
			Role:        enums.RoleInventory,
			DisplayName: "Inventory Manager",
			LoginPath:   "/inventory-management/",
			Capabilities: []Capability{
				CapRead,
				CapManageInventory,
				CapViewSuppliers,
				CapCreatePurchaseOrder,
				CapViewOwnSchedule,
				CapRequestTimeOff,
			},
		},
		{
			Role:        enums.RoleManager,
			DisplayName: "Restaurant Manager",
			LoginPath:   "/admin/restaurant-dashboard",
			Capabilities: []Capability{
				CapRead,
				CapEditPosts,
				CapDeletePosts,
				CapManageReservations,
				CapManageOrders,
				CapManageMenu,
				CapManageInventory,
				CapManageStaff,
				CapManageSchedules,
				CapViewReports,
				CapExportData,
			},
		},
		{
			Role:         enums.RoleAdministrator,
			DisplayName:  "Administrator",
			LoginPath:    "/admin/restaurant-dashboard",
			Capabilities: AllCapabilities(),
		},
	}
}
