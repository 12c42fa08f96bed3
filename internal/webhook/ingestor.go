package webhook

import (
	"context"
	"log"

	"github.com/votepay/backend/internal/audit"
	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
	"github.com/votepay/backend/internal/services"
)

// Ack results returned to providers
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultPending   = "pending"
)

// TransactionFinder looks transactions up by their public reference
type TransactionFinder interface {
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
}

// Confirmer applies a verified outcome
type Confirmer interface {
	Confirm(ctx context.Context, in services.ConfirmInput) (*services.ConfirmResult, error)
}

// Ack is the body returned for an accepted notification
type Ack struct {
	Reference string                   `json:"reference"`
	Status    models.TransactionStatus `json:"status,omitempty"`
	Result    string                   `json:"result"`
}

// Ingestor authenticates provider notifications and hands their outcome to
// the confirmation engine.
type Ingestor struct {
	keys      *Keyring
	finder    TransactionFinder
	confirmer Confirmer
	audit     *audit.Logger
	metrics   *metrics.Metrics
}

func NewIngestor(keys *Keyring, finder TransactionFinder, confirmer Confirmer, auditLogger *audit.Logger, m *metrics.Metrics) *Ingestor {
	return &Ingestor{
		keys:      keys,
		finder:    finder,
		confirmer: confirmer,
		audit:     auditLogger,
		metrics:   m,
	}
}

// Ingest processes one raw notification. The signature is checked over the
// exact bytes received before anything in the body is trusted.
func (i *Ingestor) Ingest(ctx context.Context, provider string, body []byte, signature, remoteAddr string) (*Ack, error) {
	label := provider
	if !i.keys.Has(provider) {
		label = "unknown"
	}

	if err := i.keys.Verify(provider, body, signature); err != nil {
		reason := apperrors.AsAppError(err).Details
		log.Printf("[WEBHOOK] Rejected %q notification from %s: %s", provider, remoteAddr, reason)
		i.audit.LogSecurity(provider, reason, remoteAddr)
		i.metrics.Webhooks.WithLabelValues(label, "unauthorized").Inc()
		return nil, err
	}

	n, err := Canonicalize(provider, body)
	if err != nil {
		log.Printf("[WEBHOOK] Unparseable %s notification: %v", provider, err)
		i.metrics.Webhooks.WithLabelValues(label, "bad_payload").Inc()
		return nil, err
	}

	tx, err := i.finder.GetTransactionByReference(ctx, n.Reference)
	if err != nil {
		if apperrors.AsAppError(err).Code == apperrors.NotFound {
			log.Printf("[WEBHOOK] %s notification for unknown reference %s", provider, n.Reference)
			i.metrics.Webhooks.WithLabelValues(label, "unknown_reference").Inc()
		} else {
			i.metrics.Webhooks.WithLabelValues(label, "error").Inc()
		}
		return nil, err
	}

	if tx.PaymentProvider != provider {
		reason := "notification from " + provider + " for a " + tx.PaymentProvider + " transaction"
		log.Printf("[WEBHOOK] %s: %s", n.Reference, reason)
		i.audit.LogSecurity(provider, reason, remoteAddr)
		i.metrics.Webhooks.WithLabelValues(label, "unauthorized").Inc()
		return nil, apperrors.ErrUnauthorized.WithDetails("provider does not own this transaction")
	}

	if !n.Final() {
		i.metrics.Webhooks.WithLabelValues(label, ResultPending).Inc()
		return &Ack{Reference: tx.Reference, Status: tx.Status, Result: ResultPending}, nil
	}

	if tx.Status == models.StatusSuccess {
		log.Printf("[WEBHOOK] %s already SUCCESS, acknowledging %s %s", tx.Reference, provider, n.Outcome)
		i.metrics.Webhooks.WithLabelValues(label, ResultDuplicate).Inc()
		return &Ack{Reference: tx.Reference, Status: tx.Status, Result: ResultDuplicate}, nil
	}

	res, err := i.confirmer.Confirm(ctx, services.ConfirmInput{
		TransactionID: tx.ID,
		Outcome:       n.Outcome,
		ProviderTxID:  n.ProviderTxID,
		Reason:        n.Reason,
		Source:        services.SourceWebhook,
	})
	if err != nil {
		i.metrics.Webhooks.WithLabelValues(label, "error").Inc()
		return nil, err
	}

	result := ResultDuplicate
	switch {
	case res.Applied:
		result = ResultApplied
	case res.Ignored:
		result = ResultIgnored
	}
	i.metrics.Webhooks.WithLabelValues(label, result).Inc()
	return &Ack{Reference: tx.Reference, Status: res.Transaction.Status, Result: result}, nil
}
