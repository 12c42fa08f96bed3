package handlers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/services"
	"github.com/votepay/backend/internal/webhook"
)

// WebhookIngestor authenticates and applies a raw provider notification
type WebhookIngestor interface {
	Ingest(ctx context.Context, provider string, body []byte, signature, remoteAddr string) (*webhook.Ack, error)
}

type WebhookHandler struct {
	ingestor WebhookIngestor
}

func NewWebhookHandler(ingestor WebhookIngestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

// PaymentWebhook receives provider payment notifications
// @Summary Payment provider webhook
// @Description Signed notification from a payment provider. The provider is named in X-Payment-Provider and the hex HMAC-SHA256 of the raw body is sent in X-Webhook-Signature.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Payment-Provider header string true "Provider id"
// @Param X-Webhook-Signature header string true "Hex HMAC-SHA256 of the body"
// @Success 200 {object} webhook.Ack
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /webhooks/payment [post]
func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[WEBHOOK] Failed to read body from %s: %v", r.RemoteAddr, err)
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	ack, err := h.ingestor.Ingest(r.Context(),
		r.Header.Get(gateway.HeaderProvider),
		body,
		r.Header.Get(gateway.HeaderSignature),
		r.RemoteAddr,
	)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, ack)
}
