package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bistro-backend/api/middleware"
	"github.com/angelmondragon/bistro-backend/internal/auth"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/reservations"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/types"
)

// Unimplemented methods fall through to the nil embedded interface and panic.
type fakeReservations struct {
	reservations.Service
	created   reservations.CreateInput
	cancelID  string
	statusSet enums.ReservationStatus
}

func (f *fakeReservations) Create(_ context.Context, actor rbac.Actor, in reservations.CreateInput) (*reservations.ReservationDTO, error) {
	f.created = in
	return &reservations.ReservationDTO{ID: uuid.New(), UserID: actor.UserID, TableNumber: in.TableNumber}, nil
}

func (f *fakeReservations) Cancel(_ context.Context, _ rbac.Actor, rawID string) (*reservations.CancelResult, error) {
	f.cancelID = rawID
	if rawID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Missing reservation ID")
	}
	return &reservations.CancelResult{Message: "Reservation cancelled successfully"}, nil
}

func (f *fakeReservations) SetStatus(_ context.Context, _ rbac.Actor, id uuid.UUID, status enums.ReservationStatus) (*reservations.ReservationDTO, error) {
	f.statusSet = status
	return &reservations.ReservationDTO{ID: id, Status: status}, nil
}

type fakeInventory struct {
	inventory.Service
	items      []inventory.ItemDTO
	listParams inventory.ListParams
	adjusted   *inventory.AdjustInput
}

func (f *fakeInventory) Adjust(_ context.Context, _ rbac.Actor, _ uuid.UUID, in inventory.AdjustInput) (*inventory.AdjustResult, error) {
	f.adjusted = &in
	return &inventory.AdjustResult{Message: "Inventory updated successfully", NewQuantity: *in.NewQuantity}, nil
}

func (f *fakeInventory) List(_ context.Context, p inventory.ListParams) ([]inventory.ItemDTO, error) {
	f.listParams = p
	return f.items, nil
}

type fakeRegister struct {
	resp *auth.RegisterResponse
}

func (f fakeRegister) Register(context.Context, auth.RegisterRequest) (*auth.RegisterResponse, error) {
	return f.resp, nil
}

type fakeExporter struct{}

func (fakeExporter) WriteInventory(_ context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "ID,Item Name\n")
	return err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func withActor(req *http.Request, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), rbac.Actor{UserID: uuid.New(), Role: role, SessionID: "jti"}))
}

func withParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func TestReservationCreateRequiresActor(t *testing.T) {
	handler := ReservationCreate(&fakeReservations{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReservationCreatePassesForm(t *testing.T) {
	svc := &fakeReservations{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2030-01-01","time":"19:00","table_number":4,"guests":2}`))
	rec := httptest.NewRecorder()
	ReservationCreate(svc, nil).ServeHTTP(rec, withActor(req, enums.RoleCustomer))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 4, svc.created.TableNumber)
	assert.Equal(t, "19:00", svc.created.Time)
}

func TestReservationCancelPassesRawID(t *testing.T) {
	svc := &fakeReservations{}
	req := withActor(httptest.NewRequest(http.MethodPost, "/", nil), enums.RoleCustomer)
	rec := httptest.NewRecorder()
	ReservationCancel(svc, nil).ServeHTTP(rec, withParam(req, "id", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "", svc.cancelID)
}

func TestAdminReservationStatus(t *testing.T) {
	svc := &fakeReservations{}
	id := uuid.New()

	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"seated"}`)), enums.RoleManager)
	rec := httptest.NewRecorder()
	AdminReservationStatus(svc, nil).ServeHTTP(rec, withParam(req, "id", id.String()))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"confirmed"}`)), enums.RoleManager)
	rec = httptest.NewRecorder()
	AdminReservationStatus(svc, nil).ServeHTTP(rec, withParam(req, "id", id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, enums.ReservationStatusConfirmed, svc.statusSet)
}

func TestInventoryListParsesQuery(t *testing.T) {
	svc := &fakeInventory{items: []inventory.ItemDTO{}}
	req := httptest.NewRequest(http.MethodGet, "/?category=dry-goods&orderby=quantity&order=desc&low_stock_only=yes&limit=5", nil)
	rec := httptest.NewRecorder()
	InventoryList(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, inventory.ListParams{Category: "dry-goods", Limit: 5, OrderBy: "quantity", Order: "desc", LowStockOnly: true}, svc.listParams)
}

func TestInventoryAdjustRequiresNewQuantity(t *testing.T) {
	svc := &fakeInventory{}
	id := uuid.New().String()

	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"oops"}`)), enums.RoleInventory)
	rec := httptest.NewRecorder()
	InventoryAdjust(svc, nil).ServeHTTP(rec, withParam(req, "id", id))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "new_quantity is required")
	assert.Nil(t, svc.adjusted)

	req = withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"new_quantity":"0","reason":"empty"}`)), enums.RoleInventory)
	rec = httptest.NewRecorder()
	InventoryAdjust(svc, nil).ServeHTTP(rec, withParam(req, "id", id))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.adjusted)
	assert.True(t, svc.adjusted.NewQuantity.IsZero())
}

func TestInventoryCardsViewGatesCost(t *testing.T) {
	reg := rbac.MustDefault()
	svc := &fakeInventory{items: []inventory.ItemDTO{{
		ID: uuid.New(), Title: "Flour", Quantity: decimal.NewFromInt(3), Unit: "kg", Cost: decimal.RequireFromString("1.5"),
	}}}
	handler := InventoryCardsView(svc, reg, nil)

	cases := map[enums.Role]string{
		enums.RoleCustomer:  "",
		enums.RoleInventory: "1.50",
	}
	for role, wantCost := range cases {
		req := withActor(httptest.NewRequest(http.MethodGet, "/?show_cost=yes", nil), role)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			Cards []struct {
				Cost string `json:"cost"`
			} `json:"cards"`
		}
		decodeData(t, rec, &view)
		require.Len(t, view.Cards, 1)
		assert.Equal(t, wantCost, view.Cards[0].Cost, "role %s", role)
	}
}

func TestInventoryTableViewRendersHTML(t *testing.T) {
	svc := &fakeInventory{items: []inventory.ItemDTO{{Title: "Basil", StockClass: "low-stock"}}}
	rec := httptest.NewRecorder()
	InventoryTableView(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?format=html", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Basil")
}

func TestInventoryExportFilename(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	rec := httptest.NewRecorder()
	InventoryExport(fakeExporter{}, now, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="inventory_export_2026-03-04.csv"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "ID,Item Name\n", rec.Body.String())
}

func TestAuthRegisterStatus(t *testing.T) {
	cases := map[bool]int{true: http.StatusCreated, false: http.StatusOK}
	for created, want := range cases {
		svc := fakeRegister{resp: &auth.RegisterResponse{UserID: uuid.New(), Created: created}}
		body := bytes.NewBufferString(`{"email":"a@b.co","name":"Ann"}`)
		rec := httptest.NewRecorder()
		AuthRegister(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", body))
		require.Equal(t, want, rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": fakePinger{}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"redis": fakePinger{err: errors.New("down")}}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var env types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Equal(t, "redis unavailable", env.Error.Message)
}
