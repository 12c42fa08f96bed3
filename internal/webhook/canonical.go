package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/votepay/backend/internal/config"
	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/models"
)

// Notification is a provider webhook reduced to what the ledger needs.
// An empty Outcome marks an interim status that changes nothing.
type Notification struct {
	Provider     string
	Reference    string
	Outcome      models.Outcome
	ProviderTxID string
	Reason       string
}

// Final reports whether the notification carries a terminal outcome
func (n *Notification) Final() bool {
	return n.Outcome != ""
}

type parser func(body []byte) (*Notification, error)

var parsers = map[string]parser{
	config.ProviderCheckout: parseCheckout,
	config.ProviderMomo:     parseMomo,
	config.ProviderUSSD:     parseUSSD,
}

// Canonicalize maps a provider-specific body to a Notification
func Canonicalize(provider string, body []byte) (*Notification, error) {
	parse, ok := parsers[provider]
	if !ok {
		return nil, apperrors.ErrBadPayload.WithDetails(fmt.Sprintf("no parser for provider %q", provider))
	}
	n, err := parse(body)
	if err != nil {
		return nil, err
	}
	if n.Reference == "" {
		return nil, apperrors.ErrBadPayload.WithDetails("missing reference")
	}
	n.Provider = provider
	return n, nil
}

func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.ErrBadPayload.WithDetails("invalid JSON: " + err.Error())
	}
	return nil
}

func parseCheckout(body []byte) (*Notification, error) {
	var msg gateway.CheckoutWebhook
	if err := decode(body, &msg); err != nil {
		return nil, err
	}

	n := &Notification{Reference: msg.Data.Reference, ProviderTxID: msg.Data.ID}
	switch {
	case msg.Event == "charge.success" && strings.EqualFold(msg.Data.Status, "success"):
		n.Outcome = models.OutcomeSuccess
	case msg.Event == "charge.failed":
		n.Outcome = models.OutcomeFailed
		n.Reason = models.ReasonDeclined
	default:
		return nil, apperrors.ErrBadPayload.WithDetails(fmt.Sprintf("unexpected checkout event %q with status %q", msg.Event, msg.Data.Status))
	}
	return n, nil
}

func parseMomo(body []byte) (*Notification, error) {
	var msg gateway.MomoWebhook
	if err := decode(body, &msg); err != nil {
		return nil, err
	}

	n := &Notification{Reference: msg.ExternalID, ProviderTxID: msg.FinancialTransactionID}
	switch strings.ToUpper(msg.Status) {
	case "SUCCESSFUL":
		n.Outcome = models.OutcomeSuccess
	case "FAILED", "REJECTED":
		n.Outcome = models.OutcomeFailed
		n.Reason = models.ReasonDeclined
	case "TIMEOUT":
		n.Outcome = models.OutcomeFailed
		n.Reason = models.ReasonExpired
	case "PENDING":
	default:
		return nil, apperrors.ErrBadPayload.WithDetails(fmt.Sprintf("unexpected momo status %q", msg.Status))
	}
	return n, nil
}

func parseUSSD(body []byte) (*Notification, error) {
	var msg gateway.USSDWebhook
	if err := decode(body, &msg); err != nil {
		return nil, err
	}

	n := &Notification{Reference: msg.ClientReference, ProviderTxID: msg.TransactionID}
	switch msg.ResultCode {
	case gateway.USSDResultSuccess:
		n.Outcome = models.OutcomeSuccess
	case gateway.USSDResultFailed:
		n.Outcome = models.OutcomeFailed
		n.Reason = models.ReasonDeclined
	case gateway.USSDResultTimeout:
		n.Outcome = models.OutcomeFailed
		n.Reason = models.ReasonExpired
	default:
		return nil, apperrors.ErrBadPayload.WithDetails(fmt.Sprintf("unexpected ussd result code %q", msg.ResultCode))
	}
	return n, nil
}
