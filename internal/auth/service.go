package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bistro-backend/internal/users"
	pkgAuth "github.com/angelmondragon/bistro-backend/pkg/auth"
	"github.com/angelmondragon/bistro-backend/pkg/auth/session"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResponse, error)
	ActionToken(ctx context.Context, actor rbac.Actor, action string) (*ActionTokenResponse, error)
}

type service struct {
	users       userRepository
	session     sessionManager
	registry    *rbac.Registry
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotated, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Registry       *rbac.Registry
	JWTConfig      config.JWTConfig
	// PasswordConfig is the current argon2 cost; older hashes are upgraded on login.
	PasswordConfig config.PasswordConfig
	Now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	case params.Registry == nil:
		return nil, errors.New("rbac registry is required")
	}
	svc := &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		registry:    params.Registry,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         params.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsValid() {
		return nil, denied()
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := s.issue(ctx, user, now)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Role:         user.Role,
		RedirectPath: s.registry.LoginPath(user.Role),
		User:         users.FromModel(user),
	}, nil
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time) (string, string, error) {
	accessID := session.NewAccessID()
	access, err := s.mint(user, accessID, now)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return access, refresh, nil
}

func (s *service) mint(user *models.User, jti string, now time.Time) (string, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role, JTI: jti})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

// sessionOf returns the jti of an access token, expired or not.
func (s *service) sessionOf(accessToken string) (string, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims.ID, nil
}

func denied() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
}

// Logout revokes the refresh session behind the presented access token. The
// token may already be expired.
func (s *service) Logout(ctx context.Context, accessToken string) error {
	sid, err := s.sessionOf(accessToken)
	if err != nil {
		return err
	}
	if err := s.session.Revoke(ctx, sid); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// Refresh rotates the refresh token and mints a new access token. The role is
// re-read so a demoted or deactivated user does not keep old rights.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResponse, error) {
	sid, err := s.sessionOf(accessToken)
	if err != nil {
		return nil, err
	}
	rotated, err := s.session.Rotate(ctx, sid, refreshToken)
	switch {
	case errors.Is(err, session.ErrInvalidRefreshToken):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, rotated.UserID)
	if err != nil || !user.IsActive || !user.Role.IsValid() {
		_ = s.session.Revoke(ctx, rotated.AccessID)
		return nil, denied()
	}
	access, err := s.mint(user, rotated.AccessID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &RefreshResponse{AccessToken: access, RefreshToken: rotated.RefreshToken}, nil
}

// ActionToken mints a security token bound to the caller's session and one
// action name.
func (s *service) ActionToken(ctx context.Context, actor rbac.Actor, action string) (*ActionTokenResponse, error) {
	action = strings.TrimSpace(action)
	if !pkgAuth.IsKnownAction(action) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown action")
	}
	if actor.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	token, expiresAt, err := pkgAuth.MintActionToken(s.jwtCfg, s.now().UTC(), actor.SessionID, action)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint action token")
	}
	return &ActionTokenResponse{Token: token, Action: action, ExpiresAt: expiresAt}, nil
}

// authenticate checks the credentials and upgrades a hash made with an older
// argon2 cost. Unknown email, wrong password and inactive user all look alike.
func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, denied()
	}
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, denied()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive {
		return nil, denied()
	}
	if !security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		return user, nil
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rehash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store rehashed password")
	}
	user.PasswordHash = hash
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}
