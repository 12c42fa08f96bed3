package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/votepay/backend/internal/config"
	"github.com/votepay/backend/internal/models"
)

// MomoWebhook is the mobile-money push prompt callback body
type MomoWebhook struct {
	ExternalID             string `json:"externalId"`
	FinancialTransactionID string `json:"financialTransactionId"`
	Status                 string `json:"status"`
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	Payer                  string `json:"payer,omitempty"`
	Reason                 string `json:"reason,omitempty"`
}

type momoProtocol struct{}

// NewMomo returns the push-prompt mobile money simulator. The buyer's phone
// number is required; without one the payment is declined upfront.
func NewMomo(cfg config.ProviderConfig, opts ...Option) *Simulator {
	return newSimulator(cfg, momoProtocol{}, opts...)
}

func (momoProtocol) txPrefix() string { return "MOMO-" }

func (momoProtocol) prepare(req InitRequest, s *session) (bool, NextAction, string, error) {
	if req.Buyer.Phone == "" {
		return false, NextAction{Type: ActionPrompt, Message: "A mobile money number is required"}, "payer phone number missing", nil
	}

	expires := s.expiresAt
	return true, NextAction{
		Type:      ActionPrompt,
		Message:   fmt.Sprintf("Approve the %s %s prompt sent to %s", req.Currency, req.Amount.StringFixed(2), maskPhone(req.Buyer.Phone)),
		ExpiresAt: &expires,
	}, "", nil
}

func (momoProtocol) webhookBody(s *session) ([]byte, error) {
	msg := MomoWebhook{
		ExternalID:             s.reference,
		FinancialTransactionID: s.providerTxID,
		Status:                 "FAILED",
		Amount:                 s.amount.StringFixed(2),
		Currency:               s.currency,
		Payer:                  s.buyer.Phone,
		Reason:                 "PAYER_NOT_APPROVED",
	}
	if s.status == models.StatusSuccess {
		msg.Status = "SUCCESSFUL"
		msg.Reason = ""
	}
	return json.Marshal(msg)
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "***" + phone[len(phone)-4:]
}
