package purchaseorders

import (
	"context"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the order and its lines.
func (r *Repository) Create(ctx context.Context, po *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit("Supplier").Create(po).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// LockByID loads the order header for update.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var po models.PurchaseOrder
	if err := q.First(&po, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

// Save writes the header columns only.
func (r *Repository) Save(ctx context.Context, po *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(po).Error
}

// ReplaceLines drops the existing lines of the order and inserts lines.
func (r *Repository) ReplaceLines(ctx context.Context, orderID uuid.UUID, lines []models.PurchaseOrderLine) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("purchase_order_id = ?", orderID).Delete(&models.PurchaseOrderLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].PurchaseOrderID = orderID
	}
	return conn.Create(&lines).Error
}

type ListFilter struct {
	Status *enums.PurchaseOrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// List pages through orders newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.PurchaseOrder, error) {
	q := r.db.WithContext(ctx).Model(&models.PurchaseOrder{}).Preload("Supplier")
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	var rows []models.PurchaseOrder
	err := q.Scopes(pagination.Keyset(f.Limit, f.Cursor)).Find(&rows).Error
	return rows, err
}

// Recent returns the latest orders without paging.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.PurchaseOrder, error) {
	var rows []models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CountByStatus(ctx context.Context, status enums.PurchaseOrderStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PurchaseOrder{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
