package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/votepay/backend/internal/config"
	"github.com/votepay/backend/internal/models"
)

var (
	_ Gateway       = (*Simulator)(nil)
	_ HealthChecker = (*Simulator)(nil)
	_ Replayer      = (*Simulator)(nil)
)

// CheckoutWebhook is the hosted checkout provider's notification body
type CheckoutWebhook struct {
	Event string              `json:"event"`
	Data  CheckoutWebhookData `json:"data"`
}

type CheckoutWebhookData struct {
	Reference string `json:"reference"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at,omitempty"`
}

type checkoutProtocol struct {
	baseURL string
}

// NewCheckout returns the redirect-based hosted checkout simulator
func NewCheckout(cfg config.ProviderConfig, baseURL string, opts ...Option) *Simulator {
	return newSimulator(cfg, &checkoutProtocol{baseURL: strings.TrimRight(baseURL, "/")}, opts...)
}

func (p *checkoutProtocol) txPrefix() string { return "CHK-" }

func (p *checkoutProtocol) prepare(req InitRequest, s *session) (bool, NextAction, string, error) {
	checkoutURL := p.baseURL + "/" + url.PathEscape(s.providerTxID) + "?reference=" + url.QueryEscape(req.Reference)

	png, err := qrcode.Encode(checkoutURL, qrcode.Medium, 256)
	if err != nil {
		return false, NextAction{}, "", err
	}

	expires := s.expiresAt
	return true, NextAction{
		Type:      ActionRedirect,
		URL:       checkoutURL,
		QRCode:    base64.StdEncoding.EncodeToString(png),
		ExpiresAt: &expires,
	}, "", nil
}

func (p *checkoutProtocol) webhookBody(s *session) ([]byte, error) {
	msg := CheckoutWebhook{
		Event: "charge.failed",
		Data: CheckoutWebhookData{
			Reference: s.reference,
			ID:        s.providerTxID,
			Status:    "failed",
			Amount:    s.amount.StringFixed(2),
			Currency:  s.currency,
		},
	}
	if s.status == models.StatusSuccess {
		msg.Event = "charge.success"
		msg.Data.Status = "success"
	}
	return json.Marshal(msg)
}
