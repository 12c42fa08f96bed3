package gateway

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/votepay/backend/internal/models"
)

var (
	ErrProviderDown     = stderrors.New("gateway: provider is down")
	ErrUnknownReference = stderrors.New("gateway: unknown payment reference")
	ErrInvalidAmount    = stderrors.New("gateway: amount must be positive")
)

// Next action types returned to the buyer
const (
	ActionRedirect = "redirect"
	ActionPrompt   = "prompt"
	ActionUSSD     = "ussd"
)

// NextAction tells the buyer how to complete a payment
type NextAction struct {
	Type      string     `json:"type"`
	URL       string     `json:"url,omitempty"`
	QRCode    string     `json:"qrCode,omitempty"`
	DialCode  string     `json:"dialCode,omitempty"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type InitRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Buyer       models.Buyer
}

type InitResult struct {
	Accepted     bool       `json:"accepted"`
	NextAction   NextAction `json:"nextAction"`
	ProviderTxID string     `json:"providerTxId,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Gateway is one payment provider. InitializePayment is idempotent per
// reference: repeating it returns the original session.
type Gateway interface {
	ID() string
	SessionTTL() time.Duration
	InitializePayment(ctx context.Context, req InitRequest) (*InitResult, error)
	VerifyPayment(ctx context.Context, reference string) (models.TransactionStatus, error)
}

// HealthChecker is implemented by gateways that can report liveness
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Replayer is implemented by gateways that can resend their last notification
type Replayer interface {
	ReplayWebhook(ctx context.Context, reference string) error
}
