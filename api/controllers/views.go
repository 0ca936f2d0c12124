package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bistro-backend/api/middleware"
	"github.com/angelmondragon/bistro-backend/api/responses"
	"github.com/angelmondragon/bistro-backend/internal/inventory"
	"github.com/angelmondragon/bistro-backend/internal/views"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
	"github.com/angelmondragon/bistro-backend/pkg/rbac"
)

func wantsHTML(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("format")), "html")
}

// InventoryTableView serves the compact embeddable inventory table.
func InventoryTableView(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := views.ParseTableOptions(r.URL.Query())
		items, err := svc.List(r.Context(), opts.ListParams())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := views.InventoryTable(items, opts)
		if !wantsHTML(r) {
			responses.WriteSuccess(w, view)
			return
		}
		body, err := views.RenderTable(view)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render inventory table"))
			return
		}
		responses.WriteHTML(w, http.StatusOK, body)
	}
}

// InventoryCardsView serves the detailed view. Cost is shown only to callers
// who manage inventory, whatever show_cost says.
func InventoryCardsView(svc inventory.Service, reg *rbac.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := views.ParseCardOptions(r.URL.Query())
		canSeeCost := false
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			canSeeCost = actor.Can(reg, rbac.CapManageInventory)
		}

		items, err := svc.List(r.Context(), opts.ListParams())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := views.InventoryCards(items, opts, canSeeCost)
		if !wantsHTML(r) {
			responses.WriteSuccess(w, view)
			return
		}
		body, err := views.RenderCards(view)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render inventory cards"))
			return
		}
		responses.WriteHTML(w, http.StatusOK, body)
	}
}
