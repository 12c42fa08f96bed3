package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/votepay/backend/internal/models"
)

// ErrReferenceTaken is returned by CreateTransaction when the reference collides
var ErrReferenceTaken = stderrors.New("ledger: transaction reference already exists")

// Repository is the Ledger Store. It exclusively owns transactions, vote and
// ticket batches, and the denormalized counters on the catalog rows.
type Repository interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	// LockTransaction reads the row FOR UPDATE; only meaningful inside WithTransaction.
	LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time, providerTxID string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason, providerTxID string) (bool, error)
	ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error)

	BatchExists(ctx context.Context, kind models.TransactionKind, transactionID uuid.UUID) (bool, error)
	InsertVoteBatch(ctx context.Context, batch *models.VoteBatch) error
	InsertTicketBatch(ctx context.Context, batch *models.TicketBatch) error

	GetVoteTarget(ctx context.Context, candidateID uuid.UUID) (*models.VoteTarget, error)
	GetTicketTarget(ctx context.Context, ticketTypeID uuid.UUID) (*models.TicketTarget, error)
	IncrementCandidateVotes(ctx context.Context, candidateID uuid.UUID, quantity int64) error
	IncrementCategoryVotes(ctx context.Context, categoryID uuid.UUID, quantity int64) error
	IncrementTicketTypeSold(ctx context.Context, ticketTypeID uuid.UUID, quantity int64) error
	IncrementEventTotals(ctx context.Context, eventID uuid.UUID, votes, tickets int64, revenue decimal.Decimal) error
	IncrementOrganizerRevenue(ctx context.Context, organizerID uuid.UUID, revenue decimal.Decimal) error

	TallyEventVotes(ctx context.Context, eventID uuid.UUID) ([]models.CandidateTally, error)

	// WithTransaction runs fn against a repository bound to one database
	// transaction. fn returning an error rolls everything back.
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
}
