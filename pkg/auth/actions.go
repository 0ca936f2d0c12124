package auth

// Action names accepted by MintActionToken callers.
const (
	ActionCancelReservation = "cancel_reservation"
	ActionUpdateInventory   = "update_inventory"
	ActionInventorySearch   = "inventory_search"
	ActionCreateQuickPO     = "create_quick_po"
)

var knownActions = map[string]struct{}{
	ActionCancelReservation: {},
	ActionUpdateInventory:   {},
	ActionInventorySearch:   {},
	ActionCreateQuickPO:     {},
}

// IsKnownAction reports whether action is one the API checks tokens for.
func IsKnownAction(action string) bool {
	_, ok := knownActions[action]
	return ok
}
