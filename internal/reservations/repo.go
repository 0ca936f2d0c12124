package reservations

import (
	"context"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
	"github.com/angelmondragon/bistro-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists reservations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// SlotTaken reports whether a non-cancelled reservation already holds the
// table on date. exclude skips the reservation being edited.
func (r *Repository) SlotTaken(ctx context.Context, date types.Date, table int, exclude *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("res_date = ? AND table_number = ? AND status <> ?", date, table, enums.ReservationStatusCancelled)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns every reservation the user owns, newest date first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("res_date DESC").
		Order("res_time DESC").
		Find(&rows).Error
	return rows, err
}

// ListFilter narrows the staff listing.
type ListFilter struct {
	Date   *types.Date
	Status *enums.ReservationStatus
	Limit  int
	Cursor *pagination.Cursor
}

// List pages through reservations ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Reservation, error) {
	q := r.db.WithContext(ctx).Model(&models.Reservation{})
	if f.Date != nil {
		q = q.Where("res_date = ?", *f.Date)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	var rows []models.Reservation
	err := q.Scopes(pagination.Keyset(f.Limit, f.Cursor)).Find(&rows).Error
	return rows, err
}

// Save writes every column of res.
func (r *Repository) Save(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// MarkCancelled flips the status and stamps cancelled_at.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.ReservationStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
}
