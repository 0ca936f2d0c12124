package inventory

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/suppliers"
	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
)

const (
	msgUpdated        = "Inventory updated successfully"
	searchLimit       = 20
	DashboardLowStock = 5
	systemActorName   = "system"
)

// Service is the inventory use-case surface.
type Service interface {
	Create(ctx context.Context, actor rbac.Actor, in ItemInput) (*ItemDTO, error)
	Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in ItemInput) (*ItemDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	List(ctx context.Context, p ListParams) ([]ItemDTO, error)
	LowStock(ctx context.Context, limit int) ([]ItemDTO, error)
	Search(ctx context.Context, term string) ([]SearchResult, error)
	Adjust(ctx context.Context, actor rbac.Actor, id uuid.UUID, in AdjustInput) (*AdjustResult, error)
	Logs(ctx context.Context, id uuid.UUID) ([]LogDTO, error)
	Categories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, in CategoryInput) (*CategoryDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB         txRunner
	Reader     *gorm.DB
	Outbox     outbox.Emitter
	Restaurant config.RestaurantConfig
}

type service struct {
	db         txRunner
	reader     *gorm.DB
	outbox     outbox.Emitter
	alertRoles []string
}

func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil || p.Reader == nil {
		return nil, fmt.Errorf("database is required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	roles := make([]string, 0, len(p.Restaurant.LowStockRoles))
	for _, raw := range p.Restaurant.LowStockRoles {
		role, err := enums.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("low stock alert roles: %w", err)
		}
		roles = append(roles, string(role))
	}
	return &service{
		db:         p.DB,
		reader:     p.Reader,
		outbox:     p.Outbox,
		alertRoles: roles,
	}, nil
}

type validated struct {
	input      ItemInput
	categories []models.InventoryCategory
}

func (s *service) validate(ctx context.Context, tx *gorm.DB, in ItemInput) (validated, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Location = strings.TrimSpace(in.Location)

	fe := pkgerrors.FieldErrors{}
	if in.Title == "" {
		fe.Add("title", "Item name is required.")
	}
	if in.Quantity.IsNegative() {
		fe.Add("quantity", "Quantity cannot be negative.")
	}
	if in.ReorderLevel.IsNegative() {
		fe.Add("reorder_level", "Reorder level cannot be negative.")
	}
	if in.Cost.IsNegative() {
		fe.Add("cost", "Cost cannot be negative.")
	}
	if in.SupplierID != nil && *in.SupplierID == uuid.Nil {
		in.SupplierID = nil
	}
	if in.SupplierID != nil {
		ok, err := suppliers.NewRepository(tx).Exists(ctx, *in.SupplierID)
		if err != nil {
			return validated{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check supplier")
		}
		if !ok {
			fe.Add("supplier_id", "Supplier not found.")
		}
	}

	ids := dedupe(in.CategoryIDs)
	cats, err := NewRepository(tx).CategoriesByIDs(ctx, ids)
	if err != nil {
		return validated{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load categories")
	}
	if len(cats) != len(ids) {
		fe.Add("category_ids", "Unknown category.")
	}
	if err := fe.Err(); err != nil {
		return validated{}, err
	}
	return validated{input: in, categories: cats}, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func applyInput(item *models.InventoryItem, in ItemInput) {
	item.Title = in.Title
	item.SKU = in.SKU
	item.Quantity = in.Quantity
	item.Unit = in.Unit
	item.ReorderLevel = in.ReorderLevel
	item.Cost = in.Cost
	item.Location = in.Location
	item.SupplierID = in.SupplierID
}

func (s *service) Create(ctx context.Context, actor rbac.Actor, in ItemInput) (*ItemDTO, error) {
	var id uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		v, err := s.validate(ctx, tx, in)
		if err != nil {
			return err
		}
		item := &models.InventoryItem{Categories: v.categories}
		applyInput(item, v.input)
		if err := NewRepository(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
		}
		id = item.ID
		return s.alertIfLow(ctx, tx, actor, item)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Update overwrites the item. A quantity change made here is not logged;
// Adjust is the logged path.
func (s *service) Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in ItemInput) (*ItemDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		item, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load inventory item")
		}
		v, err := s.validate(ctx, tx, in)
		if err != nil {
			return err
		}
		applyInput(item, v.input)
		if err := repo.Save(ctx, item, v.categories); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
		}
		return s.alertIfLow(ctx, tx, actor, item)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// alertIfLow queues a low stock alert for the configured roles. Nothing is
// queued when no roles are configured.
func (s *service) alertIfLow(ctx context.Context, tx *gorm.DB, actor rbac.Actor, item *models.InventoryItem) error {
	if len(s.alertRoles) == 0 || !IsLowStock(item.Quantity, item.ReorderLevel) {
		return nil
	}
	var ref *outbox.ActorRef
	if actor.UserID != uuid.Nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		Actor:         ref,
		Data: payloads.InventoryLowStockEvent{
			ItemID:       item.ID,
			Title:        item.Title,
			Quantity:     item.Quantity,
			ReorderLevel: item.ReorderLevel,
			Unit:         item.Unit,
			Roles:        append([]string(nil), s.alertRoles...),
		},
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := NewRepository(s.reader).FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load inventory item")
	}
	dto := FromModel(*item)
	return &dto, nil
}

func (s *service) List(ctx context.Context, p ListParams) ([]ItemDTO, error) {
	orderBy := strings.ToLower(strings.TrimSpace(p.OrderBy))
	if orderBy == "" {
		orderBy = "title"
	}
	if _, ok := sortColumns[orderBy]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderby must be one of title, sku, quantity, updated_at")
	}
	var desc bool
	switch strings.ToUpper(strings.TrimSpace(p.Order)) {
	case "", "ASC":
	case "DESC":
		desc = true
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must be ASC or DESC")
	}
	rows, err := NewRepository(s.reader).List(ctx, ListFilter{
		CategorySlug: p.Category,
		LowStockOnly: p.LowStockOnly,
		OrderBy:      orderBy,
		Desc:         desc,
		Limit:        p.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}
	return toDTOs(rows), nil
}

// LowStock lists items at or below their reorder level ordered by title.
func (s *service) LowStock(ctx context.Context, limit int) ([]ItemDTO, error) {
	return s.List(ctx, ListParams{LowStockOnly: true, Limit: limit})
}

func (s *service) Search(ctx context.Context, term string) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []SearchResult{}, nil
	}
	rows, err := NewRepository(s.reader).Search(ctx, term, searchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search inventory")
	}
	out := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, SearchResult{
			ID:       row.ID,
			Title:    row.Title,
			Quantity: row.Quantity,
			Unit:     row.Unit,
			Cost:     row.Cost,
		})
	}
	return out, nil
}

func (s *service) Adjust(ctx context.Context, actor rbac.Actor, id uuid.UUID, in AdjustInput) (*AdjustResult, error) {
	if in.NewQuantity == nil {
		return nil, quantityError("new_quantity is required")
	}
	if in.NewQuantity.IsNegative() {
		return nil, quantityError("Quantity cannot be negative.")
	}
	qty := *in.NewQuantity
	var result AdjustResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		item, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load inventory item")
		}
		wasLow := IsLowStock(item.Quantity, item.ReorderLevel)
		entry := LogEntry{ActorName: ActorName(ctx, tx, actor.UserID), Reason: strings.TrimSpace(in.Reason)}
		if actor.UserID != uuid.Nil {
			uid := actor.UserID
			entry.ActorID = &uid
		}
		if _, err := repo.SetQuantity(ctx, item, qty, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quantity")
		}
		result = AdjustResult{Message: msgUpdated, NewQuantity: item.Quantity}
		if wasLow {
			return nil
		}
		return s.alertIfLow(ctx, tx, actor, item)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func quantityError(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]any{"fields": map[string]string{"new_quantity": msg}})
}

func (s *service) Logs(ctx context.Context, id uuid.UUID) ([]LogDTO, error) {
	repo := NewRepository(s.reader)
	item, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load inventory item")
	}
	rows, err := repo.Logs(ctx, id, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory log")
	}
	out := make([]LogDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, LogFromModel(row, item.Unit))
	}
	return out, nil
}

func (s *service) Categories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := NewRepository(s.reader).ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryDTO(row))
	}
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its words with dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *service) CreateCategory(ctx context.Context, in CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(in.Name)
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Category name is required.")
	}
	c := &models.InventoryCategory{Name: name, Slug: slug}
	if err := NewRepository(s.reader).CreateCategory(ctx, c); err != nil {
		if db.IsUniqueViolation(err, "ux_inventory_categories_slug") || db.IsUniqueViolation(err, "inventory_categories.slug") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Category already exists.")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := categoryDTO(*c)
	return &dto, nil
}

// ActorName resolves the display name written to the change log.
func ActorName(ctx context.Context, tx *gorm.DB, userID uuid.UUID) string {
	if userID == uuid.Nil {
		return systemActorName
	}
	u, err := users.NewRepository(tx).FindByID(ctx, userID)
	if err != nil || strings.TrimSpace(u.DisplayName) == "" {
		return systemActorName
	}
	return u.DisplayName
}

func toDTOs(rows []models.InventoryItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

func notFoundOr(err error, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
