package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
)

// Repository persists staff and customer accounts. Emails are stored and
// matched lower-cased.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds to db, which may be a transaction.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail returns gorm.ErrRecordNotFound when no account matches.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", normalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// ListActiveByRoles returns active users holding any of roles, ordered by
// email. It backs the staff notification fan-out.
func (r *Repository) ListActiveByRoles(ctx context.Context, roles []enums.Role) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("role IN ?", roles).
		Order("email").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.set(ctx, id, "last_login_at", at)
}

// UpdatePasswordHash stores a hash produced with the current argon2 cost.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.set(ctx, id, "password_hash", hash)
}

func (r *Repository) first(ctx context.Context, cond string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// set writes one column without touching updated_at hooks.
func (r *Repository) set(ctx context.Context, id uuid.UUID, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
