package rbac

// Capability is a named permission checked before an action is allowed.
type Capability string

const (
	CapRead                Capability = "read"
	CapEditPosts           Capability = "edit_posts"
	CapDeletePosts         Capability = "delete_posts"
	CapMakeReservations    Capability = "make_reservations"
	CapViewOwnReservations Capability = "view_own_reservations"
	CapViewReservations    Capability = "view_reservations"
	CapManageReservations  Capability = "manage_reservations"
	CapCreateOrders        Capability = "create_orders"
	CapEditOrders          Capability = "edit_orders"
	CapViewOrders          Capability = "view_orders"
	CapUpdateOrders        Capability = "update_orders"
	CapManageOrders        Capability = "manage_orders"
	CapViewMenu            Capability = "view_menu"
	CapManageMenu          Capability = "manage_menu"
	CapViewOwnSchedule     Capability = "view_own_schedule"
	CapRequestTimeOff      Capability = "request_time_off"
	CapManageSchedules     Capability = "manage_schedules"
	CapManageStaff         Capability = "manage_staff"
	CapManageInventory     Capability = "manage_inventory"
	CapViewSuppliers       Capability = "view_suppliers"
	CapCreatePurchaseOrder Capability = "create_purchase_orders"
	CapViewReports         Capability = "view_reports"
	CapExportData          Capability = "export_data"
)

// AllCapabilities lists every capability the service knows about.
func AllCapabilities() []Capability {
	return []Capability{
		CapRead,
		CapEditPosts,
		CapDeletePosts,
		CapMakeReservations,
		CapViewOwnReservations,
		CapViewReservations,
		CapManageReservations,
		CapCreateOrders,
		CapEditOrders,
		CapViewOrders,
		CapUpdateOrders,
		CapManageOrders,
		CapViewMenu,
		CapManageMenu,
		CapViewOwnSchedule,
		CapRequestTimeOff,
		CapManageSchedules,
		CapManageStaff,
		CapManageInventory,
		CapViewSuppliers,
		CapCreatePurchaseOrder,
		CapViewReports,
		CapExportData,
	}
}
