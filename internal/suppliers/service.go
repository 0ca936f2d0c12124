package suppliers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Input is the supplier form. Email is optional but must be valid when set.
type Input struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"max=200"`
	Email       string `json:"email" validate:"omitempty,max=254"`
	Phone       string `json:"phone" validate:"max=50"`
	Address     string `json:"address" validate:"max=500"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type SupplierDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Notes       string    `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func FromModel(m models.Supplier) SupplierDTO {
	return SupplierDTO{
		ID:          m.ID,
		Name:        m.Name,
		ContactName: m.ContactName,
		Email:       m.Email,
		Phone:       m.Phone,
		Address:     m.Address,
		Notes:       m.Notes,
		UpdatedAt:   m.UpdatedAt,
	}
}

type Service interface {
	Create(ctx context.Context, in Input) (*SupplierDTO, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*SupplierDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*SupplierDTO, error)
	List(ctx context.Context) ([]SupplierDTO, error)
}

type service struct {
	db *gorm.DB
}

func NewService(conn *gorm.DB) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &service{db: conn}, nil
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)

	fe := pkgerrors.FieldErrors{}
	if in.Name == "" {
		fe.Add("name", "Supplier name is required.")
	}
	if strings.TrimSpace(in.Email) != "" {
		email, err := security.NormalizeEmail(in.Email)
		if err != nil {
			fe.Add("email", "Please enter a valid email address.")
		}
		in.Email = email
	} else {
		in.Email = ""
	}
	return in, fe.Err()
}

func apply(m *models.Supplier, in Input) {
	m.Name = in.Name
	m.ContactName = in.ContactName
	m.Email = in.Email
	m.Phone = in.Phone
	m.Address = in.Address
	m.Notes = in.Notes
}

func (s *service) Create(ctx context.Context, in Input) (*SupplierDTO, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	var m models.Supplier
	apply(&m, in)
	if err := NewRepository(s.db).Create(ctx, &m); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create supplier")
	}
	dto := FromModel(m)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, in Input) (*SupplierDTO, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	repo := NewRepository(s.db)
	m, err := s.load(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	apply(m, in)
	if err := repo.Save(ctx, m); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update supplier")
	}
	dto := FromModel(*m)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SupplierDTO, error) {
	m, err := s.load(ctx, NewRepository(s.db), id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*m)
	return &dto, nil
}

func (s *service) List(ctx context.Context) ([]SupplierDTO, error) {
	rows, err := NewRepository(s.db).List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	out := make([]SupplierDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Supplier, error) {
	m, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier")
	}
	return m, nil
}
