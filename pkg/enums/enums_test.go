package enums

import "testing"

func TestParseRoleNormalizes(t *testing.T) {
	role, err := ParseRole("  Restaurant_Manager ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != RoleManager {
		t.Fatalf("expected manager, got %s", role)
	}
	if _, err := ParseRole("chef"); err == nil {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestReservationStatusActive(t *testing.T) {
	tests := []struct {
		status ReservationStatus
		active bool
	}{
		{ReservationStatusPending, true},
		{ReservationStatusConfirmed, true},
		{ReservationStatusCancelled, false},
	}
	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.active {
			t.Fatalf("%s: expected active=%v got %v", tt.status, tt.active, got)
		}
	}
}

func TestParsePurchaseOrderStatus(t *testing.T) {
	for _, value := range []string{"pending", "ordered", "partial", "received", "cancelled"} {
		if _, err := ParsePurchaseOrderStatus(value); err != nil {
			t.Fatalf("expected %q to parse: %v", value, err)
		}
	}
	if _, err := ParsePurchaseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected shipped to be rejected")
	}
}

func TestOutboxEventTypesAreValid(t *testing.T) {
	for _, et := range validOutboxEventTypes {
		if !et.IsValid() {
			t.Fatalf("%s should be valid", et)
		}
	}
	if OutboxEventType("order_created").IsValid() {
		t.Fatalf("unexpected valid event type")
	}
}
