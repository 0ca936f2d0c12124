package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bistro-backend/api/controllers"
	"github.com/angelmondragon/bistro-backend/api/middleware"
	"github.com/angelmondragon/bistro-backend/internal/auth"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/purchaseorders"
	"github.com/angelmondragon/bistro-backend/internal/reports"
	"github.com/angelmondragon/bistro-backend/internal/reservations"
	"github.com/angelmondragon/bistro-backend/internal/suppliers"
	pkgAuth "github.com/angelmondragon/bistro-backend/pkg/auth"
	"github.com/angelmondragon/bistro-backend/pkg/auth/session"
	"github.com/angelmondragon/bistro-backend/pkg/config"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/metrics"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
	"github.com/angelmondragon/bistro-backend/pkg/redis"
)

// Deps carries everything the HTTP surface is wired from.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *rbac.Registry
	DB       controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Metrics  *prometheus.Registry
	Now      func() time.Time

	Auth           auth.Service
	Register       auth.RegisterService
	Reservations   reservations.Service
	Inventory      inventory.Service
	Suppliers      suppliers.Service
	PurchaseOrders purchaseorders.Service
	Reports        reports.Service
	Exporter       controllers.InventoryExporter
}

func NewRouter(d Deps) http.Handler {
	cfg, logg, reg := d.Config, d.Logger, d.Registry
	if reg == nil {
		reg = rbac.MustDefault()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
	if d.Metrics != nil {
		r.Use(metrics.NewHTTPMetrics(d.Metrics).Middleware)
		r.Handle("/metrics", metrics.Handler(d.Metrics))
	}

	can := func(caps ...rbac.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(reg, logg, caps...)
	}
	token := func(action string) func(http.Handler) http.Handler {
		return middleware.RequireActionToken(cfg.JWT, action, logg)
	}

	passthrough := func(next http.Handler) http.Handler { return next }
	rateLimit := func(p middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if d.Redis == nil {
			return passthrough
		}
		return middleware.AuthRateLimit(p, d.Redis, logg)
	}
	idempotent := func(ttl time.Duration) func(http.Handler) http.Handler {
		if d.Redis == nil {
			return passthrough
		}
		return middleware.Idempotency(d.Redis, ttl, logg)
	}

	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.AuthRateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}

	deps := map[string]controllers.Pinger{"db": d.DB}
	if d.Redis != nil {
		deps["redis"] = d.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(rateLimit(loginPolicy)).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.With(rateLimit(registerPolicy)).Post("/register", controllers.AuthRegister(d.Register, logg))
		r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, d.Sessions, logg)).Post("/action-tokens", controllers.AuthActionToken(d.Auth, logg))
	})

	r.Route("/api/v1/views", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, d.Sessions, logg))
		r.Get("/inventory", controllers.InventoryTableView(d.Inventory, logg))
		r.Get("/inventory/detailed", controllers.InventoryCardsView(d.Inventory, reg, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))

		r.Route("/reservations", func(r chi.Router) {
			r.With(
				can(rbac.CapMakeReservations),
				idempotent(middleware.CriticalIdempotencyTTL),
			).Post("/", controllers.ReservationCreate(d.Reservations, logg))
			r.With(can(rbac.CapViewOwnReservations)).Get("/mine", controllers.ReservationListMine(d.Reservations, logg))
			// ownership is checked by the service
			r.With(token(pkgAuth.ActionCancelReservation)).Post("/{id}/cancel", controllers.ReservationCancel(d.Reservations, logg))
			r.Get("/{id}/qr", controllers.ReservationQR(d.Reservations, logg))
		})

		r.Route("/admin/reservations", func(r chi.Router) {
			r.With(can(rbac.CapViewReservations, rbac.CapManageReservations)).Get("/", controllers.AdminReservationList(d.Reservations, logg))
			r.With(can(rbac.CapManageReservations)).Put("/{id}", controllers.AdminReservationUpdate(d.Reservations, logg))
			r.With(can(rbac.CapManageReservations)).Post("/{id}/status", controllers.AdminReservationStatus(d.Reservations, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			manage := can(rbac.CapManageInventory)
			r.With(manage).Get("/", controllers.InventoryList(d.Inventory, logg))
			r.With(manage).Post("/", controllers.InventoryCreate(d.Inventory, logg))
			r.With(token(pkgAuth.ActionInventorySearch), manage).Get("/search", controllers.InventorySearch(d.Inventory, logg))
			r.With(manage).Get("/low-stock", controllers.InventoryLowStock(d.Inventory, logg))
			r.With(can(rbac.CapExportData, rbac.CapManageInventory)).Get("/export", controllers.InventoryExport(d.Exporter, d.Now, logg))
			r.With(manage).Get("/categories", controllers.CategoryList(d.Inventory, logg))
			r.With(manage).Post("/categories", controllers.CategoryCreate(d.Inventory, logg))
			r.With(manage).Get("/{id}", controllers.InventoryGet(d.Inventory, logg))
			r.With(manage).Put("/{id}", controllers.InventoryUpdate(d.Inventory, logg))
			r.With(token(pkgAuth.ActionUpdateInventory), manage).Post("/{id}/adjust", controllers.InventoryAdjust(d.Inventory, logg))
			r.With(manage).Get("/{id}/logs", controllers.InventoryLogs(d.Inventory, logg))
			r.With(token(pkgAuth.ActionCreateQuickPO), can(rbac.CapCreatePurchaseOrder)).Post("/{id}/quick-po", controllers.InventoryQuickPO(d.PurchaseOrders, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			read := can(rbac.CapViewSuppliers, rbac.CapManageInventory)
			write := can(rbac.CapManageInventory)
			r.With(read).Get("/", controllers.SupplierList(d.Suppliers, logg))
			r.With(write).Post("/", controllers.SupplierCreate(d.Suppliers, logg))
			r.With(read).Get("/{id}", controllers.SupplierGet(d.Suppliers, logg))
			r.With(write).Put("/{id}", controllers.SupplierUpdate(d.Suppliers, logg))
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			read := can(rbac.CapViewSuppliers, rbac.CapCreatePurchaseOrder, rbac.CapEditPosts)
			write := can(rbac.CapCreatePurchaseOrder, rbac.CapEditPosts)
			r.With(read).Get("/", controllers.PurchaseOrderList(d.PurchaseOrders, logg))
			r.With(write).Post("/", controllers.PurchaseOrderCreate(d.PurchaseOrders, logg))
			r.With(read).Get("/{id}", controllers.PurchaseOrderGet(d.PurchaseOrders, logg))
			r.With(write).Put("/{id}", controllers.PurchaseOrderUpdate(d.PurchaseOrders, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.With(can(rbac.CapManageInventory)).Get("/dashboard", controllers.ReportDashboard(d.Reports, logg))
			r.With(can(rbac.CapViewReports, rbac.CapManageInventory)).Get("/valuation", controllers.ReportValuation(d.Reports, logg))
		})
	})

	return r
}
