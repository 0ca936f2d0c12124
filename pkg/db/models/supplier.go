package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Supplier struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	ContactName string    `gorm:"column:contact_name;not null;default:''"`
	Email       string    `gorm:"column:email;not null;default:''"`
	Phone       string    `gorm:"column:phone;not null;default:''"`
	Address     string    `gorm:"column:address;not null;default:''"`
	Notes       string    `gorm:"column:notes;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Supplier) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
