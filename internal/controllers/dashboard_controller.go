package controllers

import (
	"net/http"

	"github.com/msdeveloper2k/cashback-zone/internal/middleware"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type DashboardController struct {
	dashboards services.DashboardService
	phones     services.PhoneVerificationService
	profiles   services.ProfileService
}

func NewDashboardController(
	dashboards services.DashboardService,
	phones services.PhoneVerificationService,
	profiles services.ProfileService,
) *DashboardController {
	return &DashboardController{dashboards: dashboards, phones: phones, profiles: profiles}
}

// -----------------------------------------------------------------------------
// GET /api/v1/dashboard
// -----------------------------------------------------------------------------
func (c *DashboardController) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	profile, ok := currentProfile(w, r, c.profiles)
	if !ok {
		return
	}
	id, _ := middleware.IdentityFrom(r.Context())

	d, err := c.dashboards.GetDashboard(r.Context(), profile, id.Staff)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}

// -----------------------------------------------------------------------------
// GET /api/v1/admin/providers   (staff)
// -----------------------------------------------------------------------------
func (c *DashboardController) ProviderStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := c.phones.ProviderStatus(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, status)
}

// -----------------------------------------------------------------------------
// POST /api/v1/admin/pending-verifications/process   (staff)
// -----------------------------------------------------------------------------
func (c *DashboardController) ProcessPendingHandler(w http.ResponseWriter, r *http.Request) {
	report, err := c.phones.ProcessPendingVerifications(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, report)
}
