package controllers

import (
	"net/http"

	"github.com/angelmondragon/bistro-backend/api/responses"
	"github.com/angelmondragon/bistro-backend/internal/reports"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

func ReportDashboard(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, err := svc.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dash)
	}
}

func ReportValuation(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		val, err := svc.Valuation(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, val)
	}
}
