package models

import (
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation books one table for one date.
type Reservation struct {
	ID           uuid.UUID               `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	CustomerName string                  `gorm:"column:customer_name;not null"`
	Date         types.Date              `gorm:"column:res_date;type:date;not null"`
	Time         types.ClockTime         `gorm:"column:res_time;type:text;not null"`
	TableNumber  int                     `gorm:"column:table_number;not null"`
	Guests       int                     `gorm:"column:guests;not null"`
	Status       enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CancelledAt  *time.Time              `gorm:"column:cancelled_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
