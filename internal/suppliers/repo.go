package suppliers

import (
	"context"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, s *models.Supplier) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repository) Save(ctx context.Context, s *models.Supplier) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var s models.Supplier
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every supplier ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Supplier, error) {
	var rows []models.Supplier
	err := r.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Supplier{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
