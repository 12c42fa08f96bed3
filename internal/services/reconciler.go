package services

import (
	"context"
	"log"
	"time"

	"github.com/votepay/backend/internal/audit"
	"github.com/votepay/backend/internal/gateway"
	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
)

// Sweep verdicts
const (
	VerdictSucceeded  = "succeeded"
	VerdictFailed     = "failed"
	VerdictExpired    = "expired"
	VerdictUnverified = "unverified"
	VerdictError      = "error"
)

// GatewayLookup finds the adapter that owns a transaction
type GatewayLookup interface {
	Gateway(id string) (gateway.Gateway, bool)
}

type SweepReport struct {
	Scanned   int `json:"scanned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
	// Unverified transactions could not be checked with their provider and
	// stay PENDING until they pass the abandonment cutoff.
	Unverified int `json:"unverified"`
	Errors     int `json:"errors"`
}

// Reconciler resolves PENDING transactions whose session has expired. It asks
// the provider first and only times a transaction out when the provider says
// it is unpaid; it never produces SUCCESS without the provider saying so.
//
// A transaction the provider cannot answer for (unknown reference, provider
// unreachable or no longer registered) is left PENDING until its expiry is
// older than abandonAfter, so a payment settled elsewhere still has time to
// arrive by webhook.
type Reconciler struct {
	repo         ledger.Repository
	gateways     GatewayLookup
	confirmer    *ConfirmationService
	audit        *audit.Logger
	metrics      *metrics.Metrics
	grace        time.Duration
	abandonAfter time.Duration
	batchSize    int
	now          func() time.Time
}

func NewReconciler(repo ledger.Repository, gateways GatewayLookup, confirmer *ConfirmationService, auditLogger *audit.Logger, m *metrics.Metrics, grace, abandonAfter time.Duration, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		repo:         repo,
		gateways:     gateways,
		confirmer:    confirmer,
		audit:        auditLogger,
		metrics:      m,
		grace:        grace,
		abandonAfter: abandonAfter,
		batchSize:    batchSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Sweep processes one page of expired PENDING transactions
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	cutoff := r.now().Add(-r.grace)
	pending, err := r.repo.ListExpiredPending(ctx, cutoff, r.batchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Scanned: len(pending)}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		verdict := r.resolve(ctx, tx)
		r.metrics.SweepTransitions.WithLabelValues(verdict).Inc()
		r.audit.LogSweep(tx.Reference, tx.PaymentProvider, verdict)

		switch verdict {
		case VerdictSucceeded:
			report.Succeeded++
		case VerdictFailed:
			report.Failed++
		case VerdictExpired:
			report.Expired++
		case VerdictUnverified:
			report.Unverified++
		default:
			report.Errors++
		}
	}

	if report.Scanned > 0 {
		log.Printf("[SWEEP] scanned=%d succeeded=%d failed=%d expired=%d unverified=%d errors=%d",
			report.Scanned, report.Succeeded, report.Failed, report.Expired, report.Unverified, report.Errors)
	}
	return report, nil
}

func (r *Reconciler) resolve(ctx context.Context, tx *models.Transaction) string {
	status, verified := r.verify(ctx, tx)
	if !verified {
		if !r.abandoned(tx) {
			return VerdictUnverified
		}
		log.Printf("[SWEEP] Abandoning %s: unverifiable for longer than %s", tx.Reference, r.abandonAfter)
	}

	in := ConfirmInput{TransactionID: tx.ID, Source: SourceSweep}
	verdict := VerdictExpired
	switch status {
	case models.StatusSuccess:
		in.Outcome = models.OutcomeSuccess
		verdict = VerdictSucceeded
	case models.StatusFailed:
		in.Outcome = models.OutcomeFailed
		in.Reason = models.ReasonProvider
		verdict = VerdictFailed
	default:
		in.Outcome = models.OutcomeFailed
		in.Reason = models.ReasonExpired
	}

	if _, err := r.confirmer.Confirm(ctx, in); err != nil {
		log.Printf("[SWEEP] Confirm %s as %s failed: %v", tx.Reference, verdict, err)
		return VerdictError
	}
	return verdict
}

// verify asks the owning gateway for the transaction's status
func (r *Reconciler) verify(ctx context.Context, tx *models.Transaction) (models.TransactionStatus, bool) {
	gw, ok := r.gateways.Gateway(tx.PaymentProvider)
	if !ok {
		log.Printf("[SWEEP] No gateway registered for %s (%s)", tx.PaymentProvider, tx.Reference)
		return models.StatusPending, false
	}
	status, err := gw.VerifyPayment(ctx, tx.Reference)
	if err != nil {
		log.Printf("[SWEEP] Verify %s with %s failed: %v", tx.Reference, tx.PaymentProvider, err)
		return models.StatusPending, false
	}
	return status, true
}

func (r *Reconciler) abandoned(tx *models.Transaction) bool {
	expiredAt := tx.CreatedAt
	if tx.ExpiresAt != nil {
		expiredAt = *tx.ExpiresAt
	}
	return expiredAt.Before(r.now().Add(-r.abandonAfter))
}

// Run sweeps on every tick until ctx is cancelled. A non-positive interval
// disables the in-process sweep.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Printf("[SWEEP] In-process sweep disabled (interval=%s)", interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[SWEEP] Sweep failed: %v", err)
			}
		}
	}
}
