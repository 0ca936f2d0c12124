package reservations

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
)

// CreateInput is the booking form. Zero values count as missing.
type CreateInput struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	TableNumber  int    `json:"table_number"`
	Guests       int    `json:"guests"`
	CustomerName string `json:"customer_name,omitempty"`
}

// UpdateInput is the staff edit form. Nil fields keep their current value.
type UpdateInput struct {
	Date         *string `json:"date,omitempty"`
	Time         *string `json:"time,omitempty"`
	TableNumber  *int    `json:"table_number,omitempty"`
	Guests       *int    `json:"guests,omitempty"`
	CustomerName *string `json:"customer_name,omitempty"`
}

type ReservationDTO struct {
	ID           uuid.UUID               `json:"id"`
	UserID       uuid.UUID               `json:"user_id"`
	CustomerName string                  `json:"customer_name"`
	Date         types.Date              `json:"date"`
	Time         types.ClockTime         `json:"time"`
	TableNumber  int                     `json:"table_number"`
	Guests       int                     `json:"guests"`
	Status       enums.ReservationStatus `json:"status"`
	IsPast       bool                    `json:"is_past"`
	CanCancel    bool                    `json:"can_cancel"`
	CreatedAt    time.Time               `json:"created_at"`
}

// MineResult is the customer's own listing.
type MineResult struct {
	Reservations []ReservationDTO `json:"reservations"`
	Message      string           `json:"message,omitempty"`
}

type CancelResult struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}

func toDTO(m models.Reservation, today types.Date) ReservationDTO {
	isPast := m.Date.Before(today)
	return ReservationDTO{
		ID:           m.ID,
		UserID:       m.UserID,
		CustomerName: m.CustomerName,
		Date:         m.Date,
		Time:         m.Time,
		TableNumber:  m.TableNumber,
		Guests:       m.Guests,
		Status:       m.Status,
		IsPast:       isPast,
		CanCancel:    !isPast && m.Status.Active(),
		CreatedAt:    m.CreatedAt,
	}
}
