package gateway

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/votepay/backend/internal/config"
	"github.com/votepay/backend/internal/models"
)

// USSD result codes
const (
	USSDResultSuccess = "0000"
	USSDResultFailed  = "0001"
	USSDResultTimeout = "0002"
)

// USSDWebhook is the USSD aggregator's session-close callback body
type USSDWebhook struct {
	SessionID         string `json:"sessionId"`
	ClientReference   string `json:"clientReference"`
	TransactionID     string `json:"transactionId"`
	ResultCode        string `json:"resultCode"`
	ResultDescription string `json:"resultDescription"`
	Amount            string `json:"amount"`
}

type ussdProtocol struct {
	dialPrefix string
	dialSuffix string
	codeLength int
}

// NewUSSD returns the USSD-session simulator. Sessions expire after the
// provider's SessionTTL; a session that was never completed reads FAILED.
func NewUSSD(cfg config.ProviderConfig, dialPrefix, dialSuffix string, codeLength int, opts ...Option) *Simulator {
	if codeLength <= 0 {
		codeLength = 6
	}
	return newSimulator(cfg, &ussdProtocol{
		dialPrefix: dialPrefix,
		dialSuffix: dialSuffix,
		codeLength: codeLength,
	}, opts...)
}

func (p *ussdProtocol) txPrefix() string { return "USSD-" }

func (p *ussdProtocol) prepare(req InitRequest, s *session) (bool, NextAction, string, error) {
	code := p.generateSecureCode()
	dial := p.dialPrefix + code + p.dialSuffix

	expires := s.expiresAt
	return true, NextAction{
		Type:      ActionUSSD,
		DialCode:  dial,
		Message:   fmt.Sprintf("Dial %s to pay %s %s before the session expires", dial, req.Currency, req.Amount.StringFixed(2)),
		ExpiresAt: &expires,
	}, "", nil
}

func (p *ussdProtocol) generateSecureCode() string {
	const charset = "0123456789"
	code := make([]byte, p.codeLength)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}
	return string(code)
}

func (p *ussdProtocol) webhookBody(s *session) ([]byte, error) {
	msg := USSDWebhook{
		SessionID:         "S" + s.providerTxID,
		ClientReference:   s.reference,
		TransactionID:     s.providerTxID,
		ResultCode:        USSDResultFailed,
		ResultDescription: "Payment failed",
		Amount:            s.amount.StringFixed(2),
	}
	if s.status == models.StatusSuccess {
		msg.ResultCode = USSDResultSuccess
		msg.ResultDescription = "Payment successful"
	} else if s.timedOut {
		msg.ResultCode = USSDResultTimeout
		msg.ResultDescription = "Session timed out"
	}
	return json.Marshal(msg)
}
