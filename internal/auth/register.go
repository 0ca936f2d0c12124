package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/users"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/outbox"
	"github.com/angelmondragon/bistro-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bistro-backend/pkg/security"
)

const (
	msgUserExists     = "User already exists."
	msgUserRegistered = "User registered successfully. Login details have been sent to your email."
)

// RegisterService handles public customer sign-up.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	Outbox         outbox.Emitter
	PasswordConfig config.PasswordConfig
	Restaurant     config.RestaurantConfig
	// GeneratePassword defaults to security.GenerateTempPassword.
	GeneratePassword func(length int) (string, error)
}

type registerService struct {
	db          txRunner
	outbox      outbox.Emitter
	passwordCfg config.PasswordConfig
	loginURL    string
	genPassword func(int) (string, error)
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	gen := params.GeneratePassword
	if gen == nil {
		gen = security.GenerateTempPassword
	}
	return &registerService{
		db:          params.DB,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		loginURL:    strings.TrimRight(params.Restaurant.PublicBaseURL, "/") + "/login",
		genPassword: gen,
	}, nil
}

// Register creates a customer account with a generated password. An existing
// email is not an error: the caller gets the existing id and Created=false.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email, err := security.NormalizeEmail(req.Email)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please enter a valid email address.")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name is required.")
	}

	tempPassword, err := s.genPassword(security.CustomerPasswordLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	passwordHash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var resp *RegisterResponse
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		existing, err := userRepo.FindByEmail(ctx, email)
		if err == nil {
			resp = &RegisterResponse{UserID: existing.ID, Message: msgUserExists}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			DisplayName:  name,
			Phone:        trimmedPtr(req.Phone),
			Role:         enums.RoleCustomer,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, msgUserExists)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
			OccurredAt:    time.Now().UTC(),
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				DisplayName:  user.DisplayName,
				TempPassword: tempPassword,
				LoginURL:     s.loginURL,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit user registered")
		}

		resp = &RegisterResponse{UserID: user.ID, Created: true, Message: msgUserRegistered}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
