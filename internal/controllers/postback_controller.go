package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/msdeveloper2k/cashback-zone/internal/dtos"
	"github.com/msdeveloper2k/cashback-zone/internal/metrics"
	"github.com/msdeveloper2k/cashback-zone/internal/routes"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type PostbackController struct {
	svc services.AttributionService
}

func NewPostbackController(s services.AttributionService) *PostbackController {
	return &PostbackController{svc: s}
}

// RegisterRoutes mounts the postback endpoint. Networks must POST; the
// parameters may still arrive in the query string.
func (c *PostbackController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(routes.Postback, c.PostbackHandler).Methods(http.MethodPost)
}

// -----------------------------------------------------------------------------
// POST /postback   (form or query: api_key, referral_id, state)
// -----------------------------------------------------------------------------
func (c *PostbackController) PostbackHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.respond(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Malformed form body", err)
		return
	}

	in := services.PostbackInput{
		APIKey:     r.Form.Get("api_key"),
		ReferralID: r.Form.Get("referral_id"),
		State:      r.Form.Get("state"),
	}
	if in.APIKey == "" {
		c.respond(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid API key", nil)
		return
	}
	if in.ReferralID == "" {
		c.respond(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "referral_id is required", nil)
		return
	}

	ref, err := c.svc.Postback(r.Context(), in)
	status := services.PostbackStatus(err)
	if err != nil {
		var code, msg string
		switch status {
		case http.StatusUnauthorized:
			code, msg = utils.ErrCodeUnauthorized, "Invalid API key"
		case http.StatusBadRequest:
			code, msg = utils.ErrCodeInvalidPayload, err.Error()
		case http.StatusConflict:
			code, msg = utils.ErrCodeConflict, err.Error()
		default:
			code, msg = utils.ErrCodeInternal, "Internal error"
		}
		c.respond(w, status, code, msg, err)
		return
	}

	metrics.PostbacksTotal.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	utils.RespondWithJSON(w, http.StatusOK, dtos.PostbackResponse{
		Status:       "success",
		ReferralID:   ref.ID,
		WorkingState: string(ref.WorkingState),
		ClickCount:   ref.ClickCount,
	})
}

func (c *PostbackController) respond(w http.ResponseWriter, status int, code, msg string, err error) {
	metrics.PostbacksTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	utils.RespondErrorWithCode(w, status, code, msg, nil, err)
}
