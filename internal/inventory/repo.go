package inventory

import (
	"context"
	"strings"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists items, categories and the quantity change log.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the item together with its category links.
func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Omit("Supplier", "Categories.*").Create(item).Error
}

// Save writes the item columns and replaces its category links.
func (r *Repository) Save(ctx context.Context, item *models.InventoryItem, categories []models.InventoryCategory) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Omit(clause.Associations).Save(item).Error; err != nil {
		return err
	}
	if err := conn.Model(item).Association("Categories").Replace(categories); err != nil {
		return err
	}
	item.Categories = categories
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Categories").
		First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LockByID loads the item for update. Postgres holds a row lock until the
// transaction ends; SQLite already serializes writers.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.InventoryItem
	if err := q.First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDs returns the items keyed by id. Missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.InventoryItem, error) {
	out := make(map[uuid.UUID]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

var sortColumns = map[string]string{
	"title":      "inventory_items.title",
	"sku":        "inventory_items.sku",
	"quantity":   "inventory_items.quantity",
	"updated_at": "inventory_items.updated_at",
}

// ListFilter narrows item listings. Limit <= 0 means no limit.
type ListFilter struct {
	CategorySlug string
	LowStockOnly bool
	OrderBy      string
	Desc         bool
	Limit        int
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.InventoryItem, error) {
	q := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Preload("Supplier").
		Preload("Categories")
	if slug := strings.TrimSpace(f.CategorySlug); slug != "" {
		q = q.Joins("JOIN inventory_item_categories iic ON iic.item_id = inventory_items.id").
			Joins("JOIN inventory_categories ic ON ic.id = iic.category_id").
			Where("ic.slug = ?", slug)
	}
	if f.LowStockOnly {
		q = q.Where("inventory_items.quantity <= inventory_items.reorder_level")
	}
	column, ok := sortColumns[f.OrderBy]
	if !ok {
		column = sortColumns["title"]
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: f.Desc}).
		Order("inventory_items.id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.InventoryItem
	err := q.Find(&rows).Error
	return rows, err
}

// Search matches titles case-insensitively.
func (r *Repository) Search(ctx context.Context, term string, limit int) ([]models.InventoryItem, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	var rows []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("title ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.InventoryItem{}).Count(&n).Error
	return n, err
}

func (r *Repository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("quantity <= reorder_level").
		Count(&n).Error
	return n, err
}

// LogEntry describes one quantity change for the append-only log.
type LogEntry struct {
	ActorID   *uuid.UUID
	ActorName string
	Reason    string
}

// SetQuantity stores newQty on item and appends the matching log row. The
// caller is expected to hold the row lock from LockByID.
func (r *Repository) SetQuantity(ctx context.Context, item *models.InventoryItem, newQty decimal.Decimal, entry LogEntry) (*models.InventoryLog, error) {
	conn := r.db.WithContext(ctx)
	previous := item.Quantity
	if err := conn.Model(&models.InventoryItem{}).
		Where("id = ?", item.ID).
		Update("quantity", newQty).Error; err != nil {
		return nil, err
	}
	log := &models.InventoryLog{
		ItemID:           item.ID,
		ActorID:          entry.ActorID,
		ActorName:        entry.ActorName,
		PreviousQuantity: previous,
		NewQuantity:      newQty,
		Reason:           entry.Reason,
	}
	if err := conn.Create(log).Error; err != nil {
		return nil, err
	}
	item.Quantity = newQty
	return log, nil
}

// Logs returns the change log for an item, newest first.
func (r *Repository) Logs(ctx context.Context, itemID uuid.UUID, limit int) ([]models.InventoryLog, error) {
	q := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.InventoryLog
	err := q.Find(&rows).Error
	return rows, err
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.InventoryCategory, error) {
	var rows []models.InventoryCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryCategory, error) {
	if len(ids) == 0 {
		return []models.InventoryCategory{}, nil
	}
	var rows []models.InventoryCategory
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateCategory(ctx context.Context, c *models.InventoryCategory) error {
	return r.db.WithContext(ctx).Create(c).Error
}
