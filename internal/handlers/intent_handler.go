package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/models"
	"github.com/votepay/backend/internal/services"
)

// IntentService creates and looks up payment intents
type IntentService interface {
	CreateIntent(ctx context.Context, req services.IntentRequest) (*services.IntentResult, error)
	GetIntent(ctx context.Context, reference string) (*models.Transaction, error)
}

// IntentCanceller cancels PENDING intents
type IntentCanceller interface {
	Cancel(ctx context.Context, reference string) (*services.ConfirmResult, error)
}

type IntentHandler struct {
	intents   IntentService
	canceller IntentCanceller
	reports   *services.StatusReportService
	validator *services.ValidationHelper
}

func NewIntentHandler(intents IntentService, canceller IntentCanceller, reports *services.StatusReportService) *IntentHandler {
	return &IntentHandler{
		intents:   intents,
		canceller: canceller,
		reports:   reports,
		validator: services.NewValidationHelper(),
	}
}

// IntentResponse is returned when an intent is created
type IntentResponse struct {
	Reference  string                   `json:"reference"`
	Status     models.TransactionStatus `json:"status"`
	Kind       models.TransactionKind   `json:"kind"`
	Amount     decimal.Decimal          `json:"amount"`
	Currency   string                   `json:"currency"`
	Provider   string                   `json:"provider"`
	NextAction *gateway.NextAction      `json:"nextAction,omitempty"`
	ExpiresAt  *time.Time               `json:"expiresAt,omitempty"`
	InitError  string                   `json:"initError,omitempty"`
}

// CreateIntent records a PENDING purchase and starts the payment
// @Summary Create payment intent
// @Description Price a vote or ticket purchase, record it as PENDING and start the payment with a provider
// @Tags Intents
// @Accept json
// @Produce json
// @Param request body services.IntentRequest true "Intent request"
// @Success 201 {object} IntentResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /intents [post]
func (h *IntentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req services.IntentRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		log.Printf("[INTENT] CreateIntent - Decode error: %v", err)
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

	result, err := h.intents.CreateIntent(r.Context(), req)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	tx := result.Transaction
	services.SendJSON(w, http.StatusCreated, IntentResponse{
		Reference:  tx.Reference,
		Status:     tx.Status,
		Kind:       tx.Kind,
		Amount:     tx.Amount,
		Currency:   tx.Currency,
		Provider:   result.Provider,
		NextAction: result.NextAction,
		ExpiresAt:  tx.ExpiresAt,
		InitError:  result.InitError,
	})
}

// GetIntent returns the current state of an intent for polling
// @Summary Get payment intent
// @Tags Intents
// @Produce json
// @Param reference path string true "Intent reference"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /intents/{reference} [get]
func (h *IntentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	tx, err := h.intents.GetIntent(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, tx)
}

// CancelIntent fails a PENDING intent at the buyer's request
// @Summary Cancel payment intent
// @Description Moves a PENDING intent to FAILED. Settled intents are returned unchanged.
// @Tags Intents
// @Produce json
// @Param reference path string true "Intent reference"
// @Success 200 {object} services.ConfirmResult
// @Failure 404 {object} services.ErrorResponse
// @Router /intents/{reference}/cancel [post]
func (h *IntentHandler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	result, err := h.canceller.Cancel(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// StatusReport renders the intent as an ISO 20022 pacs.002 status report
// @Summary Payment status report
// @Tags Intents
// @Produce xml
// @Param reference path string true "Intent reference"
// @Success 200 {string} string "pacs.002 XML document"
// @Failure 404 {object} services.ErrorResponse
// @Router /intents/{reference}/status-report [get]
func (h *IntentHandler) StatusReport(w http.ResponseWriter, r *http.Request) {
	tx, err := h.intents.GetIntent(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	doc, err := h.reports.RenderXML(tx)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
}
