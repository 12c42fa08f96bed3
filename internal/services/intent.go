package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/votepay/backend/internal/audit"
	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
)

const (
	MaxIntentQuantity  = 10000
	referenceAttempts  = 5
	referenceRandChars = 8
)

// ProviderSelector picks the gateway for a new intent
type ProviderSelector interface {
	SelectPreferred(id string) (gateway.Gateway, error)
}

type IntentRequest struct {
	Kind     models.TransactionKind `json:"kind" validate:"required,oneof=VOTE TICKET"`
	TargetID uuid.UUID              `json:"targetId" validate:"required"`
	Quantity int64                  `json:"quantity" validate:"required,gte=1,lte=10000"`
	Provider string                 `json:"provider,omitempty" validate:"omitempty,oneof=checkout momo ussd"`
	Buyer    models.Buyer           `json:"buyer"`
}

type IntentResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Provider    string              `json:"provider"`
	NextAction  *gateway.NextAction `json:"nextAction,omitempty"`
	// InitError is set when the provider could not be reached; the intent
	// stays PENDING and is resolved by the sweep or a later webhook.
	InitError string `json:"initError,omitempty"`
}

// IntentService is the Intent Factory
type IntentService struct {
	repo            ledger.Repository
	selector        ProviderSelector
	confirmer       *ConfirmationService
	audit           *audit.Logger
	metrics         *metrics.Metrics
	defaultCurrency string
	now             func() time.Time
}

func NewIntentService(repo ledger.Repository, selector ProviderSelector, confirmer *ConfirmationService, auditLogger *audit.Logger, m *metrics.Metrics, defaultCurrency string) *IntentService {
	return &IntentService{
		repo:            repo,
		selector:        selector,
		confirmer:       confirmer,
		audit:           auditLogger,
		metrics:         m,
		defaultCurrency: defaultCurrency,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// quote is a priced, purchasable target
type quote struct {
	eventID  uuid.UUID
	amount   decimal.Decimal
	currency string
}

// CreateIntent validates and prices the purchase, durably records it as
// PENDING and only then asks the chosen gateway to start the payment.
func (s *IntentService) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if req.Quantity < 1 || req.Quantity > MaxIntentQuantity {
		return nil, apperrors.ErrInvalidQuantity.WithDetails(fmt.Sprintf("quantity must be between 1 and %d", MaxIntentQuantity))
	}

	payload, err := models.NewPayload(req.Kind, req.TargetID, req.Quantity)
	if err != nil {
		return nil, apperrors.ErrValidation.Wrap(err)
	}

	q, err := s.price(ctx, payload)
	if err != nil {
		return nil, err
	}

	gw, err := s.selector.SelectPreferred(req.Provider)
	if err != nil {
		s.metrics.Intents.WithLabelValues(string(req.Kind), req.Provider, "no_provider").Inc()
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(gw.SessionTTL())
	tx := &models.Transaction{
		ID:              uuid.New(),
		Kind:            req.Kind,
		EventID:         q.eventID,
		Amount:          q.amount,
		Currency:        q.currency,
		Status:          models.StatusPending,
		PaymentProvider: gw.ID(),
		Buyer:           req.Buyer,
		Payload:         payload,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       &expiresAt,
	}
	if err := s.persist(ctx, tx); err != nil {
		return nil, err
	}

	log.Printf("[INTENT] Created %s %s x%d amount=%s %s via %s", tx.Reference, tx.Kind, req.Quantity, tx.Amount.StringFixed(2), tx.Currency, gw.ID())
	s.audit.LogIntent(tx.Reference, gw.ID(), tx.Amount.StringFixed(2), string(tx.Status))

	result := &IntentResult{Transaction: tx, Provider: gw.ID()}

	init, err := gw.InitializePayment(ctx, gateway.InitRequest{
		Reference:   tx.Reference,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Description: fmt.Sprintf("%d x %s", req.Quantity, tx.Kind),
		Buyer:       tx.Buyer,
	})
	if err != nil {
		log.Printf("[INTENT] %s initialization with %s failed: %v", tx.Reference, gw.ID(), err)
		s.metrics.Intents.WithLabelValues(string(tx.Kind), gw.ID(), "init_failed").Inc()
		result.InitError = "payment provider unavailable, retry later or cancel"
		return result, nil
	}

	result.NextAction = &init.NextAction

	if !init.Accepted {
		s.metrics.Intents.WithLabelValues(string(tx.Kind), gw.ID(), "declined").Inc()
		confirmed, err := s.confirmer.Confirm(ctx, ConfirmInput{
			TransactionID: tx.ID,
			Outcome:       models.OutcomeFailed,
			ProviderTxID:  init.ProviderTxID,
			Reason:        models.ReasonDeclined,
			Source:        SourceIntent,
		})
		if err != nil {
			return nil, err
		}
		result.Transaction = confirmed.Transaction
		return result, nil
	}

	s.metrics.Intents.WithLabelValues(string(tx.Kind), gw.ID(), "created").Inc()
	return result, nil
}

func (s *IntentService) price(ctx context.Context, payload models.Payload) (*quote, error) {
	var (
		eventID   uuid.UUID
		status    models.EventStatus
		unitPrice decimal.Decimal
		currency  string
	)

	switch p := payload.(type) {
	case models.VotePayload:
		target, err := s.repo.GetVoteTarget(ctx, p.CandidateID)
		if err != nil {
			return nil, err
		}
		if target.EventStatus != models.EventLive {
			return nil, apperrors.ErrNotPurchasable.WithDetails(fmt.Sprintf("voting requires a LIVE event, event is %s", target.EventStatus))
		}
		eventID, status, unitPrice, currency = target.EventID, target.EventStatus, target.UnitPrice, target.Currency

	case models.TicketPayload:
		target, err := s.repo.GetTicketTarget(ctx, p.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if target.EventStatus != models.EventUpcoming && target.EventStatus != models.EventLive {
			return nil, apperrors.ErrNotPurchasable.WithDetails(fmt.Sprintf("tickets are not on sale, event is %s", target.EventStatus))
		}
		if remaining := target.Remaining(); remaining >= 0 && remaining < p.Quantity {
			return nil, apperrors.ErrSoldOut.WithDetails(fmt.Sprintf("%d remaining", remaining))
		}
		eventID, status, unitPrice, currency = target.EventID, target.EventStatus, target.UnitPrice, target.Currency
	}

	if !unitPrice.IsPositive() {
		return nil, apperrors.ErrInvalidPrice.WithDetails(fmt.Sprintf("unit price %s for %s event", unitPrice.String(), status))
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	return &quote{
		eventID:  eventID,
		amount:   unitPrice.Mul(decimal.NewFromInt(payload.Units())).Round(2),
		currency: currency,
	}, nil
}

// persist inserts the transaction, drawing a fresh reference on collision
func (s *IntentService) persist(ctx context.Context, tx *models.Transaction) error {
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		tx.Reference = newReference(tx.Kind, tx.CreatedAt)
		err := s.repo.CreateTransaction(ctx, tx)
		if err == nil {
			return nil
		}
		if !ledger.IsReferenceTaken(err) {
			return err
		}
		log.Printf("[INTENT] Reference collision on %s, attempt %d", tx.Reference, attempt)
	}
	return apperrors.ErrInternal.WithDetails("could not allocate a unique reference")
}

// GetIntent returns the transaction for client polling
func (s *IntentService) GetIntent(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.repo.GetTransactionByReference(ctx, reference)
}

// newReference renders KIND-YYYYMMDD-RANDOM, e.g. VT-20260101-7KQ2M9XD
func newReference(kind models.TransactionKind, at time.Time) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffix := make([]byte, referenceRandChars)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, charsetLen)
		suffix[i] = charset[n.Int64()]
	}

	prefix := "VT"
	if kind == models.KindTicket {
		prefix = "TK"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), suffix)
}
