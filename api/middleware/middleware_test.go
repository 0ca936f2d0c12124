package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/angelmondragon/bistro-backend/pkg/auth"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
	"github.com/angelmondragon/bistro-backend/pkg/types"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "bistro", ExpirationMinutes: 60}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok, s.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewFromRaw(raw)
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler(nil))

	for name, header := range map[string]string{"missing": "", "garbage": "Bearer invalid"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthSeedsActor(t *testing.T) {
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: enums.RoleWaiter, JTI: "jti-1"})
	require.NoError(t, err)

	var actor rbac.Actor
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, enums.RoleWaiter, actor.Role)
	assert.Equal(t, "jti-1", actor.SessionID)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer, JTI: "gone"})
	require.NoError(t, err)

	handler := Auth(testJWT, stubSessionVerifier{ok: false}, nil)(okHandler(nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCapability(t *testing.T) {
	reg := rbac.MustDefault()
	mw := RequireCapability(reg, nil, rbac.CapManageInventory)

	cases := []struct {
		role enums.Role
		want int
	}{
		{enums.RoleInventory, http.StatusOK},
		{enums.RoleAdministrator, http.StatusOK},
		{enums.RoleWaiter, http.StatusForbidden},
		{enums.RoleCustomer, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithActor(req.Context(), rbac.Actor{UserID: uuid.New(), Role: tc.role}))
			rec := httptest.NewRecorder()
			mw(okHandler(nil)).ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	mw(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireActionToken(t *testing.T) {
	actor := rbac.Actor{UserID: uuid.New(), Role: enums.RoleCustomer, SessionID: "jti-7"}
	good, _, err := pkgAuth.MintActionToken(testJWT, time.Now(), "jti-7", pkgAuth.ActionCancelReservation)
	require.NoError(t, err)
	otherAction, _, err := pkgAuth.MintActionToken(testJWT, time.Now(), "jti-7", pkgAuth.ActionUpdateInventory)
	require.NoError(t, err)
	otherSession, _, err := pkgAuth.MintActionToken(testJWT, time.Now(), "jti-8", pkgAuth.ActionCancelReservation)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		want  int
	}{
		"valid":         {good, http.StatusOK},
		"missing":       {"", http.StatusForbidden},
		"other action":  {otherAction, http.StatusForbidden},
		"other session": {otherSession, http.StatusForbidden},
		"garbage":       {"abc.def.ghi", http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			handler := RequireActionToken(testJWT, pkgAuth.ActionCancelReservation, nil)(okHandler(&called))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(WithActor(req.Context(), actor))
			if tc.token != "" {
				req.Header.Set(ActionTokenHeader, tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			if tc.want != http.StatusOK {
				require.False(t, called, "handler must not run")
				require.Equal(t, string(pkgerrors.CodeSecurityToken), errorCode(t, rec))
			}
		})
	}
}

func TestAuthRateLimitBlocksAfterLimit(t *testing.T) {
	client := newRedis(t)
	policy := AuthRateLimitPolicy{Name: "login", Window: time.Minute, IPLimit: 10, EmailLimit: 2}
	handler := AuthRateLimit(policy, client, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotEmpty(t, body["email"])
		w.WriteHeader(http.StatusOK)
	}))

	send := func(email string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"`+email+`","password":"x"}`))
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("tester@example.com").Code)
	require.Equal(t, http.StatusOK, send("Tester@Example.com").Code)
	blocked := send("tester@example.com")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.Equal(t, "60", blocked.Header().Get("Retry-After"))
}

func TestIdempotencyReplaysAndRejectsReuse(t *testing.T) {
	client := newRedis(t)
	calls := 0
	handler := Idempotency(client, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"n":1}}`))
	}))
	ctx := WithActor(context.Background(), rbac.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})

	send := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body)).WithContext(ctx)
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("k1", `{"table_number":3}`)
	require.Equal(t, http.StatusCreated, first.Code)
	replay := send("k1", `{"table_number":3}`)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.JSONEq(t, `{"data":{"n":1}}`, replay.Body.String())
	require.Equal(t, "true", replay.Header().Get(IdempotencyReplayedHeader))
	require.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	require.Equal(t, 1, calls)

	reused := send("k1", `{"table_number":4}`)
	require.Equal(t, http.StatusConflict, reused.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, reused))

	missing := send("", `{}`)
	require.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestIdempotencyConflictsWhileFirstRequestRuns(t *testing.T) {
	client := newRedis(t)
	ctx := WithActor(context.Background(), rbac.Actor{UserID: uuid.New(), Role: enums.RoleCustomer})
	var second *httptest.ResponseRecorder

	var handler http.Handler
	handler = Idempotency(client, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if second == nil {
			// same key arrives while this one is still running
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`)).WithContext(ctx)
			req.Header.Set(IdempotencyKeyHeader, "k-busy")
			second = httptest.NewRecorder()
			handler.ServeHTTP(second, req)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`)).WithContext(ctx)
	req.Header.Set(IdempotencyKeyHeader, "k-busy")
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)

	require.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, second)
	require.Equal(t, http.StatusConflict, second.Code)
	require.Equal(t, string(pkgerrors.CodeInFlight), errorCode(t, second))
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	client := newRedis(t)
	calls := 0
	handler := Idempotency(client, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "k-retry")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusServiceUnavailable, send())
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, 2, calls)
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, string(pkgerrors.CodeInternal), errorCode(t, rec))
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	var seeded bool
	handler := OptionalAuth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seeded = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, seeded)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
