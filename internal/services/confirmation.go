package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/votepay/backend/internal/audit"
	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
)

// ConfirmationQueue is the Redis list confirmed transactions are pushed to
const ConfirmationQueue = "confirmation_events"

const postCommitTimeout = 2 * time.Second

// Sources recorded in the audit trail for each confirmation
const (
	SourceWebhook = "webhook"
	SourceSweep   = "sweep"
	SourceCancel  = "cancel"
	SourceIntent  = "intent"
)

// ResultsInvalidator drops cached results for an event
type ResultsInvalidator interface {
	Invalidate(ctx context.Context, eventID uuid.UUID) error
}

type ConfirmInput struct {
	TransactionID uuid.UUID
	Outcome       models.Outcome
	ProviderTxID  string
	Reason        string
	Source        string
}

type ConfirmResult struct {
	Transaction *models.Transaction `json:"transaction"`
	// Applied is true only for the call that performed the transition
	Applied bool `json:"applied"`
	// Ignored marks a SUCCESS that arrived for an already FAILED transaction
	Ignored bool `json:"ignored,omitempty"`
}

// ConfirmationService is the only writer of batches and aggregate counters
type ConfirmationService struct {
	repo    ledger.Repository
	cache   ResultsInvalidator
	queue   *redis.Client
	audit   *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewConfirmationService(repo ledger.Repository, cache ResultsInvalidator, queue *redis.Client, auditLogger *audit.Logger, m *metrics.Metrics) *ConfirmationService {
	return &ConfirmationService{
		repo:    repo,
		cache:   cache,
		queue:   queue,
		audit:   auditLogger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Confirm reconciles a verified outcome into the ledger. Every SUCCESS side
// effect commits in one database transaction; repeating the call is a no-op.
// A StoreCommitFailure leaves the transaction as it was and must be retried.
func (s *ConfirmationService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	if in.Outcome != models.OutcomeSuccess && in.Outcome != models.OutcomeFailed {
		return nil, apperrors.ErrValidation.WithDetails(fmt.Sprintf("unknown outcome %q", in.Outcome))
	}

	start := time.Now()
	var (
		result ConfirmResult
		event  *models.ConfirmationEvent
	)

	err := s.repo.WithTransaction(ctx, func(repo ledger.Repository) error {
		result = ConfirmResult{}
		event = nil

		tx, err := repo.LockTransaction(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		result.Transaction = tx

		if in.Outcome == models.OutcomeFailed {
			return s.fail(ctx, repo, tx, in, &result)
		}

		event, err = s.succeed(ctx, repo, tx, in, &result)
		return err
	})

	if stderrors.Is(err, apperrors.ErrAlreadyProcessed) {
		// lost the race on the batch unique constraint; the winner committed
		tx, getErr := s.repo.GetTransactionByID(ctx, in.TransactionID)
		if getErr != nil {
			return nil, getErr
		}
		result = ConfirmResult{Transaction: tx}
		err = nil
	}
	s.metrics.ConfirmationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Printf("[CONFIRM] %s %s failed: %v", in.TransactionID, in.Outcome, err)
		s.metrics.Confirmations.WithLabelValues("", string(in.Outcome), "error").Inc()
		s.audit.LogError(in.TransactionID.String(), err)
		return nil, err
	}

	tx := result.Transaction
	label := "duplicate"
	switch {
	case result.Applied:
		label = "applied"
	case result.Ignored:
		label = "ignored"
	}
	s.metrics.Confirmations.WithLabelValues(string(tx.Kind), string(in.Outcome), label).Inc()
	s.audit.LogConfirmation(tx.Reference, tx.PaymentProvider, tx.Amount.StringFixed(2), string(tx.Status), label+"/"+in.Source)

	if result.Applied && event != nil {
		s.afterCommit(event)
	}
	return &result, nil
}

func (s *ConfirmationService) fail(ctx context.Context, repo ledger.Repository, tx *models.Transaction, in ConfirmInput, result *ConfirmResult) error {
	if tx.Status != models.StatusPending {
		return nil
	}

	reason := in.Reason
	if reason == "" {
		reason = models.ReasonProvider
	}
	ok, err := repo.MarkFailed(ctx, tx.ID, reason, in.ProviderTxID)
	if err != nil || !ok {
		return err
	}

	tx.Status = models.StatusFailed
	tx.FailureReason = reason
	if in.ProviderTxID != "" {
		tx.ProviderTxID = in.ProviderTxID
	}
	result.Applied = true
	log.Printf("[CONFIRM] %s marked FAILED (%s) via %s", tx.Reference, reason, in.Source)
	return nil
}

func (s *ConfirmationService) succeed(ctx context.Context, repo ledger.Repository, tx *models.Transaction, in ConfirmInput, result *ConfirmResult) (*models.ConfirmationEvent, error) {
	exists, err := repo.BatchExists(ctx, tx.Kind, tx.ID)
	if err != nil || exists {
		return nil, err
	}

	switch tx.Status {
	case models.StatusFailed:
		// terminal; a late success is left for manual review, never applied
		result.Ignored = true
		log.Printf("[CONFIRM] Ignoring SUCCESS for FAILED transaction %s, flagged for review", tx.Reference)
		return nil, nil
	case models.StatusSuccess:
		return nil, nil
	}

	paidAt := s.now()
	ok, err := repo.MarkSucceeded(ctx, tx.ID, paidAt, in.ProviderTxID)
	if err != nil || !ok {
		return nil, err
	}

	var (
		targetID uuid.UUID
		quantity = tx.Payload.Units()
	)
	switch p := tx.Payload.(type) {
	case models.VotePayload:
		targetID = p.CandidateID
		if err := s.applyVotes(ctx, repo, tx, p, paidAt); err != nil {
			return nil, err
		}
	case models.TicketPayload:
		targetID = p.TicketTypeID
		if err := s.applyTickets(ctx, repo, tx, p, paidAt); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.ErrValidation.WithDetails("transaction has no payload")
	}

	tx.Status = models.StatusSuccess
	tx.PaidAt = &paidAt
	if in.ProviderTxID != "" {
		tx.ProviderTxID = in.ProviderTxID
	}
	result.Applied = true

	return &models.ConfirmationEvent{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Kind:          tx.Kind,
		EventID:       tx.EventID,
		TargetID:      targetID,
		Quantity:      quantity,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        models.StatusSuccess,
		At:            paidAt,
	}, nil
}

func (s *ConfirmationService) applyVotes(ctx context.Context, repo ledger.Repository, tx *models.Transaction, p models.VotePayload, at time.Time) error {
	target, err := repo.GetVoteTarget(ctx, p.CandidateID)
	if err != nil {
		return err
	}

	err = repo.InsertVoteBatch(ctx, &models.VoteBatch{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		CandidateID:   p.CandidateID,
		Quantity:      p.Quantity,
		VoterName:     tx.Buyer.Name,
		VoterPhone:    tx.Buyer.Phone,
		VoterEmail:    tx.Buyer.Email,
		CreatedAt:     at,
	})
	if err != nil {
		return err
	}

	if err := repo.IncrementCandidateVotes(ctx, target.CandidateID, p.Quantity); err != nil {
		return err
	}
	if err := repo.IncrementCategoryVotes(ctx, target.CategoryID, p.Quantity); err != nil {
		return err
	}
	if err := repo.IncrementEventTotals(ctx, target.EventID, p.Quantity, 0, tx.Amount); err != nil {
		return err
	}
	return repo.IncrementOrganizerRevenue(ctx, target.OrganizerID, tx.Amount)
}

func (s *ConfirmationService) applyTickets(ctx context.Context, repo ledger.Repository, tx *models.Transaction, p models.TicketPayload, at time.Time) error {
	target, err := repo.GetTicketTarget(ctx, p.TicketTypeID)
	if err != nil {
		return err
	}
	if remaining := target.Remaining(); remaining >= 0 && remaining < p.Quantity {
		// already paid for, so the tickets are issued; the organizer resolves the overbooking
		log.Printf("[CONFIRM] Ticket type %s oversold by %d via %s", p.TicketTypeID, p.Quantity-remaining, tx.Reference)
	}

	err = repo.InsertTicketBatch(ctx, &models.TicketBatch{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		TicketTypeID:  p.TicketTypeID,
		Quantity:      p.Quantity,
		Code:          generateTicketCode(),
		HolderName:    tx.Buyer.Name,
		HolderPhone:   tx.Buyer.Phone,
		HolderEmail:   tx.Buyer.Email,
		CreatedAt:     at,
	})
	if err != nil {
		return err
	}

	if err := repo.IncrementTicketTypeSold(ctx, target.TicketTypeID, p.Quantity); err != nil {
		return err
	}
	if err := repo.IncrementEventTotals(ctx, target.EventID, 0, p.Quantity, tx.Amount); err != nil {
		return err
	}
	return repo.IncrementOrganizerRevenue(ctx, target.OrganizerID, tx.Amount)
}

// afterCommit refreshes derived views. Neither step can undo the commit.
func (s *ConfirmationService) afterCommit(event *models.ConfirmationEvent) {
	if s.cache != nil && event.Kind == models.KindVote {
		go func(eventID uuid.UUID) {
			ctx, cancel := context.WithTimeout(context.Background(), postCommitTimeout)
			defer cancel()
			if err := s.cache.Invalidate(ctx, eventID); err != nil {
				log.Printf("[CONFIRM] Results invalidation for %s failed: %v", eventID, err)
			}
		}(event.EventID)
	}

	if s.queue != nil {
		if err := s.publish(event); err != nil {
			log.Printf("[CONFIRM] Failed to queue confirmation %s: %v", event.Reference, err)
		}
	}
}

func (s *ConfirmationService) publish(event *models.ConfirmationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), postCommitTimeout)
	defer cancel()
	return s.queue.RPush(ctx, ConfirmationQueue, data).Err()
}

// Cancel fails a PENDING intent on the buyer's request
func (s *ConfirmationService) Cancel(ctx context.Context, reference string) (*ConfirmResult, error) {
	tx, err := s.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return s.Confirm(ctx, ConfirmInput{
		TransactionID: tx.ID,
		Outcome:       models.OutcomeFailed,
		Reason:        models.ReasonCancelled,
		Source:        SourceCancel,
	})
}

func generateTicketCode() string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	code := make([]byte, 10)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = charset[n.Int64()]
	}
	return "TKT-" + string(code)
}
