package purchaseorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/suppliers"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bistro-backend/pkg/pagination"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/types"
)

const (
	msgQuickPOCreated = "Purchase order created successfully"
	receiptReasonFmt  = "Purchase order received: %s"
	defaultLeadDays   = 7
)

type Service interface {
	Create(ctx context.Context, actor rbac.Actor, in OrderInput) (*OrderDTO, error)
	Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in OrderInput) (*OrderDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, p ListParams) (pagination.Page[OrderDTO], error)
	Recent(ctx context.Context, limit int) ([]OrderDTO, error)
	QuickPO(ctx context.Context, actor rbac.Actor, itemID uuid.UUID, in QuickPOInput) (*QuickPOResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB         txRunner
	Reader     *gorm.DB
	Outbox     outbox.Emitter
	Restaurant config.RestaurantConfig
	Now        func() time.Time
}

type service struct {
	db      txRunner
	reader  *gorm.DB
	outbox  outbox.Emitter
	cfg     config.RestaurantConfig
	loc     *time.Location
	now     func() time.Time
	baseURL string
}

func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil || p.Reader == nil {
		return nil, fmt.Errorf("database is required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	loc, err := p.Restaurant.Location()
	if err != nil {
		return nil, fmt.Errorf("restaurant timezone: %w", err)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:      p.DB,
		reader:  p.Reader,
		outbox:  p.Outbox,
		cfg:     p.Restaurant,
		loc:     loc,
		now:     now,
		baseURL: strings.TrimRight(p.Restaurant.PublicBaseURL, "/"),
	}, nil
}

type prepared struct {
	title    string
	supplier *uuid.UUID
	status   enums.PurchaseOrderStatus
	delivery types.Date
	lines    []models.PurchaseOrderLine
}

// prepare validates the form and resolves line names and item references.
// Rows without an item are dropped.
func (s *service) prepare(ctx context.Context, tx *gorm.DB, in OrderInput, requireTitle bool) (prepared, error) {
	out := prepared{title: strings.TrimSpace(in.Title), status: enums.PurchaseOrderStatusPending}
	fe := pkgerrors.FieldErrors{}

	if out.title == "" && requireTitle {
		fe.Add("title", "Title is required.")
	}
	if raw := strings.ToLower(strings.TrimSpace(in.Status)); raw != "" {
		st, err := enums.ParsePurchaseOrderStatus(raw)
		if err != nil {
			fe.Add("status", "Unknown status.")
		}
		out.status = st
	}
	if raw := strings.TrimSpace(in.DeliveryDate); raw != "" {
		date, err := types.ParseDate(raw)
		if err != nil {
			fe.Add("delivery_date", "Delivery date must be YYYY-MM-DD.")
		}
		out.delivery = date
	}
	if in.SupplierID != nil && *in.SupplierID != uuid.Nil {
		ok, err := suppliers.NewRepository(tx).Exists(ctx, *in.SupplierID)
		if err != nil {
			return prepared{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check supplier")
		}
		if !ok {
			fe.Add("supplier_id", "Supplier not found.")
		}
		id := *in.SupplierID
		out.supplier = &id
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.InventoryItemID != nil && *l.InventoryItemID != uuid.Nil {
			ids = append(ids, *l.InventoryItemID)
		}
	}
	items, err := inventory.NewRepository(tx).FindByIDs(ctx, ids)
	if err != nil {
		return prepared{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory items")
	}

	for i, l := range in.Lines {
		if l.InventoryItemID == nil || *l.InventoryItemID == uuid.Nil {
			continue
		}
		field := fmt.Sprintf("lines[%d]", i)
		item, ok := items[*l.InventoryItemID]
		if !ok {
			fe.Add(field+".inventory_item_id", "Inventory item not found.")
			continue
		}
		if !l.Quantity.IsPositive() {
			fe.Add(field+".quantity", "Quantity must be greater than zero.")
		}
		if l.Cost.IsNegative() {
			fe.Add(field+".cost", "Cost cannot be negative.")
		}
		name := strings.TrimSpace(l.Name)
		if name == "" {
			name = item.Title
		}
		out.lines = append(out.lines, models.PurchaseOrderLine{
			InventoryItemID: item.ID,
			Name:            name,
			Quantity:        l.Quantity,
			Cost:            l.Cost,
			Position:        len(out.lines),
		})
	}
	return out, fe.Err()
}

func (s *service) Create(ctx context.Context, actor rbac.Actor, in OrderInput) (*OrderDTO, error) {
	var id uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		p, err := s.prepare(ctx, tx, in, true)
		if err != nil {
			return err
		}
		po := &models.PurchaseOrder{
			Title:        p.title,
			SupplierID:   p.supplier,
			Status:       enums.PurchaseOrderStatusPending,
			DeliveryDate: p.delivery,
			Total:        Total(p.lines),
			Lines:        p.lines,
		}
		if actor.UserID != uuid.Nil {
			uid := actor.UserID
			po.CreatedBy = &uid
		}
		if err := NewRepository(tx).Create(ctx, po); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}
		id = po.ID
		return s.transition(ctx, tx, actor, po, p.status)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in OrderInput) (*OrderDTO, error) {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		po, err := repo.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "load purchase order")
		}
		if strings.TrimSpace(in.Status) == "" {
			in.Status = string(po.Status)
		}
		p, err := s.prepare(ctx, tx, in, false)
		if err != nil {
			return err
		}
		if p.title != "" {
			po.Title = p.title
		}
		po.SupplierID = p.supplier
		po.DeliveryDate = p.delivery
		po.Total = Total(p.lines)
		if err := repo.ReplaceLines(ctx, po.ID, p.lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save purchase order lines")
		}
		po.Lines = p.lines
		if err := repo.Save(ctx, po); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order")
		}
		return s.transition(ctx, tx, actor, po, p.status)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// transition stores the new status. Entering received for the first time adds
// every line to stock and stamps received_at; later saves never re-apply it.
func (s *service) transition(ctx context.Context, tx *gorm.DB, actor rbac.Actor, po *models.PurchaseOrder, status enums.PurchaseOrderStatus) error {
	repo := NewRepository(tx)
	if status != enums.PurchaseOrderStatusReceived || po.ReceivedAt != nil {
		if po.Status == status {
			return nil
		}
		po.Status = status
		if err := repo.Save(ctx, po); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
		}
		return nil
	}

	now := s.now().UTC()
	received, err := s.receive(ctx, tx, actor, po)
	if err != nil {
		return err
	}
	po.Status = status
	po.ReceivedAt = &now
	if err := repo.Save(ctx, po); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark purchase order received")
	}

	var ref *outbox.ActorRef
	if actor.UserID != uuid.Nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseOrderRecv,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   po.ID,
		Actor:         ref,
		Data: payloads.PurchaseOrderReceivedEvent{
			PurchaseOrderID: po.ID,
			Title:           po.Title,
			Lines:           received,
			ReceivedAt:      now,
		},
	})
}

func (s *service) receive(ctx context.Context, tx *gorm.DB, actor rbac.Actor, po *models.PurchaseOrder) ([]payloads.ReceivedLine, error) {
	invRepo := inventory.NewRepository(tx)
	entry := inventory.LogEntry{
		ActorName: inventory.ActorName(ctx, tx, actor.UserID),
		Reason:    fmt.Sprintf(receiptReasonFmt, po.Title),
	}
	if actor.UserID != uuid.Nil {
		uid := actor.UserID
		entry.ActorID = &uid
	}

	out := make([]payloads.ReceivedLine, 0, len(po.Lines))
	for _, line := range po.Lines {
		item, err := invRepo.LockByID(ctx, line.InventoryItemID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("inventory item %s no longer exists", line.InventoryItemID))
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}
		if _, err := invRepo.SetQuantity(ctx, item, item.Quantity.Add(line.Quantity), entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply receipt")
		}
		out = append(out, payloads.ReceivedLine{
			InventoryItemID: item.ID,
			Name:            line.Name,
			Quantity:        line.Quantity,
		})
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	po, err := NewRepository(s.reader).FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load purchase order")
	}
	dto := FromModel(*po)
	return &dto, nil
}

func (s *service) List(ctx context.Context, p ListParams) (pagination.Page[OrderDTO], error) {
	var empty pagination.Page[OrderDTO]
	filter := ListFilter{Limit: p.Limit}
	fe := pkgerrors.FieldErrors{}
	if raw := strings.ToLower(strings.TrimSpace(p.Status)); raw != "" {
		st, err := enums.ParsePurchaseOrderStatus(raw)
		if err != nil {
			fe.Add("status", "unknown status")
		} else {
			filter.Status = &st
		}
	}
	cursor, err := pagination.ParseCursor(p.Cursor)
	if err != nil {
		fe.Add("cursor", "invalid cursor")
	}
	if err := fe.Err(); err != nil {
		return empty, err
	}
	filter.Cursor = cursor

	rows, err := NewRepository(s.reader).List(ctx, filter)
	if err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	return pagination.BuildPage(toDTOs(rows), p.Limit, func(d OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	}), nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]OrderDTO, error) {
	rows, err := NewRepository(s.reader).Recent(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recent purchase orders")
	}
	return toDTOs(rows), nil
}

// QuickPO drafts a pending single-line order for one item at its current cost.
func (s *service) QuickPO(ctx context.Context, actor rbac.Actor, itemID uuid.UUID, in QuickPOInput) (*QuickPOResult, error) {
	if !in.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be greater than zero.")
	}
	today := types.Today(s.now(), s.loc)
	lead := s.cfg.QuickPOLeadDays
	if lead <= 0 {
		lead = defaultLeadDays
	}

	var id uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := inventory.NewRepository(tx).FindByID(ctx, itemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}
		supplier, err := quickSupplier(ctx, tx, item, in.SupplierID)
		if err != nil {
			return err
		}
		lines := []models.PurchaseOrderLine{{
			InventoryItemID: item.ID,
			Name:            item.Title,
			Quantity:        in.Quantity,
			Cost:            item.Cost,
		}}
		po := &models.PurchaseOrder{
			Title:        fmt.Sprintf("PO - %s - %s", item.Title, today.String()),
			SupplierID:   supplier,
			Status:       enums.PurchaseOrderStatusPending,
			DeliveryDate: today.AddDays(lead),
			Total:        Total(lines),
			Lines:        lines,
		}
		if actor.UserID != uuid.Nil {
			uid := actor.UserID
			po.CreatedBy = &uid
		}
		if err := NewRepository(tx).Create(ctx, po); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}
		id = po.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &QuickPOResult{
		Message: msgQuickPOCreated,
		POID:    id,
		POURL:   s.baseURL + "/api/v1/purchase-orders/" + id.String(),
	}, nil
}

// quickSupplier picks the override when one is given, otherwise the item's
// own supplier, which may be nil.
func quickSupplier(ctx context.Context, tx *gorm.DB, item *models.InventoryItem, override *uuid.UUID) (*uuid.UUID, error) {
	if override == nil || *override == uuid.Nil {
		return item.SupplierID, nil
	}
	ok, err := suppliers.NewRepository(tx).Exists(ctx, *override)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check supplier")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Supplier not found.").
			WithDetails(map[string]any{"fields": map[string]string{"supplier_id": "Supplier not found."}})
	}
	id := *override
	return &id, nil
}

func toDTOs(rows []models.PurchaseOrder) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

func notFoundOr(err error, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
