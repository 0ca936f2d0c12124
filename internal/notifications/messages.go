package notifications

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/bistro-backend/pkg/mail"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
)

const (
	subjectReservationConfirmed = "Your Reservation Confirmation"
	subjectReservationCancelled = "Your Reservation Was Cancelled"
	subjectAccountCreated       = "Your account has been created"
	subjectLowStockPrefix       = "Low Inventory Alert: "
)

func reservationConfirmation(evt *payloads.ReservationCreatedEvent, restaurant string) mail.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&b, "Your reservation has been confirmed for %s at %s.\n", evt.Date, evt.Time)
	fmt.Fprintf(&b, "Table: %d\n", evt.TableNumber)
	fmt.Fprintf(&b, "Guests: %d\n\n", evt.Guests)
	b.WriteString("We look forward to seeing you!\n")
	b.WriteString(restaurant)
	return mail.Message{
		To:      evt.Email,
		ToName:  evt.CustomerName,
		Subject: subjectReservationConfirmed,
		Body:    b.String(),
	}
}

func reservationCancellation(evt *payloads.ReservationCancelledEvent, restaurant string) mail.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&b, "Your reservation for %s at table %d has been cancelled.\n\n", evt.Date, evt.TableNumber)
	b.WriteString(restaurant)
	return mail.Message{
		To:      evt.Email,
		ToName:  evt.CustomerName,
		Subject: subjectReservationCancelled,
		Body:    b.String(),
	}
}

// lowStockAlert renders the body shared by every recipient of one event.
func lowStockAlert(evt *payloads.InventoryLowStockEvent, itemURL string) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory for %s is low.\n\n", evt.Title)
	fmt.Fprintf(&b, "Current quantity: %s %s\n", evt.Quantity.String(), evt.Unit)
	fmt.Fprintf(&b, "Reorder level: %s %s\n\n", evt.ReorderLevel.String(), evt.Unit)
	b.WriteString("Please reorder this item soon.\n\n")
	fmt.Fprintf(&b, "View item: %s", itemURL)
	return subjectLowStockPrefix + evt.Title, b.String()
}

func accountCreated(evt *payloads.UserRegisteredEvent) mail.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", evt.DisplayName)
	b.WriteString("Your account has been created. You can login with the following details:\n\n")
	fmt.Fprintf(&b, "Email: %s\n", evt.Email)
	fmt.Fprintf(&b, "Password: %s\n", evt.TempPassword)
	if evt.LoginURL != "" {
		fmt.Fprintf(&b, "Login: %s\n", evt.LoginURL)
	}
	b.WriteString("\nPlease change your password after logging in.")
	return mail.Message{
		To:      evt.Email,
		ToName:  evt.DisplayName,
		Subject: subjectAccountCreated,
		Body:    b.String(),
	}
}
