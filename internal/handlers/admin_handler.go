package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/services"
)

// ProviderRegistry exposes gateway health to operators
type ProviderRegistry interface {
	Health() []gateway.ProviderHealth
	SetHealth(id string, up bool, reason string) error
	Gateway(id string) (gateway.Gateway, bool)
}

// Sweeper runs one reconciliation pass
type Sweeper interface {
	Sweep(ctx context.Context) (*services.SweepReport, error)
}

type AdminHandler struct {
	providers ProviderRegistry
	sweeper   Sweeper
	intents   IntentService
	validator *services.ValidationHelper
}

func NewAdminHandler(providers ProviderRegistry, sweeper Sweeper, intents IntentService) *AdminHandler {
	return &AdminHandler{
		providers: providers,
		sweeper:   sweeper,
		intents:   intents,
		validator: services.NewValidationHelper(),
	}
}

// ListProviders returns the health of every configured provider
// @Summary List payment providers
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} gateway.ProviderHealth
// @Failure 401 {object} services.ErrorResponse
// @Router /admin/providers [get]
func (h *AdminHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.providers.Health())
}

// SetProviderHealth marks a provider up or down
// @Summary Set provider health
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param provider path string true "Provider id"
// @Param request body object{up=bool,reason=string} true "Health override"
// @Success 200 {array} gateway.ProviderHealth
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/providers/{provider}/health [put]
func (h *AdminHandler) SetProviderHealth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Up     *bool  `json:"up" validate:"required"`
		Reason string `json:"reason,omitempty" validate:"max=200"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	provider := chi.URLParam(r, "provider")
	if err := h.providers.SetHealth(provider, *req.Up, req.Reason); err != nil {
		services.SendAppError(w, err)
		return
	}
	log.Printf("[ADMIN] Provider %s set up=%t (%s)", provider, *req.Up, req.Reason)

	services.SendJSON(w, http.StatusOK, h.providers.Health())
}

// Reconcile runs the expiry sweep immediately
// @Summary Run reconciliation sweep
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SweepReport
// @Failure 500 {object} services.ErrorResponse
// @Router /admin/reconcile [post]
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, report)
}

// ReplayWebhook asks a sandbox provider to resend its notification
// @Summary Replay sandbox webhook
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Intent reference"
// @Success 202 {object} object{reference=string,provider=string}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /admin/intents/{reference}/replay [post]
func (h *AdminHandler) ReplayWebhook(w http.ResponseWriter, r *http.Request) {
	tx, err := h.intents.GetIntent(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	gw, ok := h.providers.Gateway(tx.PaymentProvider)
	if !ok {
		services.SendAppError(w, apperrors.ErrNotFound.WithDetails("provider "+tx.PaymentProvider+" is not registered"))
		return
	}
	replayer, ok := gw.(gateway.Replayer)
	if !ok {
		services.SendAppError(w, apperrors.NewAppError(apperrors.InvalidState, "provider does not support replay"))
		return
	}

	if err := replayer.ReplayWebhook(r.Context(), tx.Reference); err != nil {
		services.SendAppError(w, apperrors.NewAppError(apperrors.InvalidState, "replay failed").Wrap(err))
		return
	}
	services.SendJSON(w, http.StatusAccepted, map[string]string{
		"reference": tx.Reference,
		"provider":  tx.PaymentProvider,
	})
}
