package reservations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/users"
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
	msgAllFieldsRequired = "All fields are required."
	msgDateInPast        = "Reservation date must be in the future."
	msgTableTaken        = "Sorry, this table is already reserved for the selected date."
	msgNoReservations    = "You have no reservations yet."
	msgMissingID         = "Missing reservation ID"
	msgCannotCancel      = "You cannot cancel this reservation"
	msgCancelled         = "Reservation cancelled successfully"
	msgCancelFailed      = "Failed to cancel reservation"

	slotIndex = "ux_reservations_active_slot"
	// sqlite reports the violated columns instead of the index name
	slotColumns = "reservations.res_date"

	qrSize = 256
)

// Service is the reservation use-case surface consumed by controllers.
type Service interface {
	Create(ctx context.Context, actor rbac.Actor, in CreateInput) (*ReservationDTO, error)
	ListMine(ctx context.Context, actor rbac.Actor) (*MineResult, error)
	Cancel(ctx context.Context, actor rbac.Actor, rawID string) (*CancelResult, error)
	List(ctx context.Context, f ListParams) (pagination.Page[ReservationDTO], error)
	Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in UpdateInput) (*ReservationDTO, error)
	SetStatus(ctx context.Context, actor rbac.Actor, id uuid.UUID, status enums.ReservationStatus) (*ReservationDTO, error)
	CheckInQR(ctx context.Context, actor rbac.Actor, id uuid.UUID) ([]byte, error)
}

// ListParams are the raw staff listing filters.
type ListParams struct {
	Date   string
	Status string
	Limit  int
	Cursor string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB         txRunner
	Reader     *gorm.DB
	Outbox     outbox.Emitter
	Registry   *rbac.Registry
	Restaurant config.RestaurantConfig
	Now        func() time.Time
}

type service struct {
	db       txRunner
	reader   *gorm.DB
	outbox   outbox.Emitter
	registry *rbac.Registry
	cfg      config.RestaurantConfig
	loc      *time.Location
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil || p.Reader == nil {
		return nil, fmt.Errorf("database is required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	if p.Registry == nil {
		return nil, fmt.Errorf("rbac registry is required")
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
		db:       p.DB,
		reader:   p.Reader,
		outbox:   p.Outbox,
		registry: p.Registry,
		cfg:      p.Restaurant,
		loc:      loc,
		now:      now,
	}, nil
}

func (s *service) today() types.Date {
	return types.Today(s.now(), s.loc)
}

type slot struct {
	date   types.Date
	time   types.ClockTime
	table  int
	guests int
}

// validate runs the form checks. Missing fields short-circuit everything else.
func (s *service) validate(date, clock string, table, guests int) (slot, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)

	missing := pkgerrors.FieldErrors{}
	if date == "" {
		missing.Add("date", "required")
	}
	if clock == "" {
		missing.Add("time", "required")
	}
	if table == 0 {
		missing.Add("table_number", "required")
	}
	if guests == 0 {
		missing.Add("guests", "required")
	}
	if !missing.Empty() {
		return slot{}, pkgerrors.New(pkgerrors.CodeValidation, msgAllFieldsRequired).
			WithDetails(map[string]any{"fields": map[string]string(missing)})
	}

	fe := pkgerrors.FieldErrors{}
	out := slot{table: table, guests: guests}

	d, err := types.ParseDate(date)
	if err != nil {
		fe.Add("date", "Reservation date must be a valid date (YYYY-MM-DD).")
	} else if d.Before(s.today()) {
		fe.Add("date", msgDateInPast)
	}
	out.date = d

	t, err := types.ParseClockTime(clock)
	if err != nil {
		fe.Add("time", "Reservation time must be in HH:MM format.")
	}
	out.time = t

	if table < 1 || (s.cfg.MaxTable > 0 && table > s.cfg.MaxTable) {
		fe.Add("table_number", fmt.Sprintf("Table number must be between 1 and %d.", s.cfg.MaxTable))
	}
	if guests < 1 || (s.cfg.MaxGuests > 0 && guests > s.cfg.MaxGuests) {
		fe.Add("guests", fmt.Sprintf("Number of guests must be between 1 and %d.", s.cfg.MaxGuests))
	}
	return out, fe.Err()
}

func conflictErr(cause error) error {
	if cause == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, msgTableTaken)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, msgTableTaken)
}

func isSlotViolation(err error) bool {
	return db.IsUniqueViolation(err, slotIndex) || db.IsUniqueViolation(err, slotColumns)
}

func (s *service) Create(ctx context.Context, actor rbac.Actor, in CreateInput) (*ReservationDTO, error) {
	sl, err := s.validate(in.Date, in.Time, in.TableNumber, in.Guests)
	if err != nil {
		return nil, err
	}

	res := &models.Reservation{
		UserID:      actor.UserID,
		Date:        sl.date,
		Time:        sl.time,
		TableNumber: sl.table,
		Guests:      sl.guests,
		Status:      enums.ReservationStatusPending,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := users.NewRepository(tx).FindByID(ctx, actor.UserID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		res.CustomerName = strings.TrimSpace(in.CustomerName)
		if res.CustomerName == "" {
			res.CustomerName = user.DisplayName
		}

		repo := NewRepository(tx)
		taken, err := repo.SlotTaken(ctx, sl.date, sl.table, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check table availability")
		}
		if taken {
			return conflictErr(nil)
		}
		if err := repo.Create(ctx, res); err != nil {
			if isSlotViolation(err) {
				return conflictErr(err)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   res.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.ReservationCreatedEvent{
				ReservationID: res.ID,
				UserID:        res.UserID,
				Email:         user.Email,
				CustomerName:  res.CustomerName,
				Date:          res.Date,
				Time:          res.Time,
				TableNumber:   res.TableNumber,
				Guests:        res.Guests,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*res, s.today())
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor rbac.Actor) (*MineResult, error) {
	rows, err := NewRepository(s.reader).ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	today := s.today()
	out := &MineResult{Reservations: make([]ReservationDTO, 0, len(rows))}
	for _, row := range rows {
		out.Reservations = append(out.Reservations, toDTO(row, today))
	}
	if len(out.Reservations) == 0 {
		out.Message = msgNoReservations
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, actor rbac.Actor, rawID string) (*CancelResult, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgMissingID)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, msgCannotCancel)
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		res, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeForbidden, msgCannotCancel)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCancelFailed)
		}
		if res.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, msgCannotCancel)
		}
		if res.Status == enums.ReservationStatusCancelled {
			return nil
		}

		now := s.now().UTC()
		if err := repo.MarkCancelled(ctx, id, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCancelFailed)
		}
		return s.emitCancelled(ctx, tx, actor, res, now)
	})
	if err != nil {
		return nil, err
	}
	return &CancelResult{ID: id, Message: msgCancelled}, nil
}

func (s *service) emitCancelled(ctx context.Context, tx *gorm.DB, actor rbac.Actor, res *models.Reservation, at time.Time) error {
	owner, err := users.NewRepository(tx).FindByID(ctx, res.UserID)
	if err != nil && !db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCancelFailed)
	}
	email := ""
	if owner != nil {
		email = owner.Email
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReservationCancelled,
		AggregateType: enums.AggregateReservation,
		AggregateID:   res.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
		Data: payloads.ReservationCancelledEvent{
			ReservationID: res.ID,
			UserID:        res.UserID,
			Email:         email,
			CustomerName:  res.CustomerName,
			Date:          res.Date,
			TableNumber:   res.TableNumber,
			CancelledAt:   at,
		},
	})
}

func (s *service) List(ctx context.Context, p ListParams) (pagination.Page[ReservationDTO], error) {
	var empty pagination.Page[ReservationDTO]
	filter := ListFilter{Limit: p.Limit}
	fe := pkgerrors.FieldErrors{}
	if strings.TrimSpace(p.Date) != "" {
		d, err := types.ParseDate(p.Date)
		if err != nil {
			fe.Add("date", "date must be YYYY-MM-DD")
		} else {
			filter.Date = &d
		}
	}
	if strings.TrimSpace(p.Status) != "" {
		st, err := enums.ParseReservationStatus(strings.ToLower(strings.TrimSpace(p.Status)))
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
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	today := s.today()
	dtos := make([]ReservationDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toDTO(row, today))
	}
	return pagination.BuildPage(dtos, p.Limit, func(d ReservationDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	}), nil
}

func (s *service) Update(ctx context.Context, actor rbac.Actor, id uuid.UUID, in UpdateInput) (*ReservationDTO, error) {
	var out models.Reservation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		res, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}

		date, clock := res.Date.String(), string(res.Time)
		table, guests := res.TableNumber, res.Guests
		if in.Date != nil {
			date = *in.Date
		}
		if in.Time != nil {
			clock = *in.Time
		}
		if in.TableNumber != nil {
			table = *in.TableNumber
		}
		if in.Guests != nil {
			guests = *in.Guests
		}
		sl, err := s.validate(date, clock, table, guests)
		if err != nil {
			return err
		}

		if res.Status.Active() {
			taken, err := repo.SlotTaken(ctx, sl.date, sl.table, &res.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check table availability")
			}
			if taken {
				return conflictErr(nil)
			}
		}

		res.Date, res.Time, res.TableNumber, res.Guests = sl.date, sl.time, sl.table, sl.guests
		if in.CustomerName != nil && strings.TrimSpace(*in.CustomerName) != "" {
			res.CustomerName = strings.TrimSpace(*in.CustomerName)
		}
		if err := repo.Save(ctx, res); err != nil {
			if isSlotViolation(err) {
				return conflictErr(err)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation")
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(out, s.today())
	return &dto, nil
}

// allowedTransitions lists the staff status moves. Reopening a cancelled
// booking re-runs the conflict check.
var allowedTransitions = map[enums.ReservationStatus][]enums.ReservationStatus{
	enums.ReservationStatusPending:   {enums.ReservationStatusConfirmed, enums.ReservationStatusCancelled},
	enums.ReservationStatusConfirmed: {enums.ReservationStatusCancelled},
	enums.ReservationStatusCancelled: {enums.ReservationStatusPending},
}

func canTransition(from, to enums.ReservationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *service) SetStatus(ctx context.Context, actor rbac.Actor, id uuid.UUID, status enums.ReservationStatus) (*ReservationDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status")
	}
	var out models.Reservation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		res, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if res.Status == status {
			out = *res
			return nil
		}
		if !canTransition(res.Status, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move reservation from %s to %s", res.Status, status))
		}

		now := s.now().UTC()
		switch status {
		case enums.ReservationStatusCancelled:
			if err := repo.MarkCancelled(ctx, res.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgCancelFailed)
			}
			if err := s.emitCancelled(ctx, tx, actor, res, now); err != nil {
				return err
			}
			res.Status, res.CancelledAt = status, &now
		default:
			if res.Status == enums.ReservationStatusCancelled {
				taken, err := repo.SlotTaken(ctx, res.Date, res.TableNumber, &res.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check table availability")
				}
				if taken {
					return conflictErr(nil)
				}
				res.CancelledAt = nil
			}
			res.Status = status
			if err := repo.Save(ctx, res); err != nil {
				if isSlotViolation(err) {
					return conflictErr(err)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
			}
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(out, s.today())
	return &dto, nil
}

// CheckInQR renders a PNG the host stand can scan. Owners and staff who can
// view reservations may fetch it.
func (s *service) CheckInQR(ctx context.Context, actor rbac.Actor, id uuid.UUID) ([]byte, error) {
	res, err := s.load(ctx, NewRepository(s.reader), id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.UserID && !actor.Can(s.registry, rbac.CapViewReservations, rbac.CapManageReservations) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	png, err := qrcode.Encode(CheckInPayload(res.ID), qrcode.Medium, qrSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr code")
	}
	return png, nil
}

// CheckInPayload is the text encoded in the check-in QR code.
func CheckInPayload(id uuid.UUID) string {
	return "bistro:reservation:" + id.String()
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Reservation, error) {
	res, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return res, nil
}
