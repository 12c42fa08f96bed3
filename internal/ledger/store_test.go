package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "kind", "event_id", "amount", "currency", "status", "payment_provider",
		"provider_tx_id", "customer_name", "customer_phone", "customer_email", "payload", "failure_reason",
		"created_at", "updated_at", "expires_at", "paid_at",
	})
}

func TestStore_CreateTransaction(t *testing.T) {
	ctx := context.Background()
	candidate := uuid.New()
	expires := time.Now().Add(time.Minute)

	newTx := func() *models.Transaction {
		return &models.Transaction{
			ID:              uuid.New(),
			Reference:       "VTP-ABC123",
			Kind:            models.KindVote,
			EventID:         uuid.New(),
			Amount:          decimal.RequireFromString("10.00"),
			Currency:        "GHS",
			Status:          models.StatusPending,
			PaymentProvider: "checkout",
			Buyer:           models.Buyer{Name: "Ama", Phone: "0240000000"},
			Payload:         models.VotePayload{CandidateID: candidate, Quantity: 10},
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
			ExpiresAt:       &expires,
		}
	}

	t.Run("inserts pending transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		tx := newTx()

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(tx.ID, "VTP-ABC123", "VOTE", tx.EventID, "10", "GHS", "PENDING", "checkout",
				"", "Ama", "0240000000", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.CreateTransaction(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reference collision", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_reference_key"})

		err := store.CreateTransaction(ctx, newTx())
		assert.True(t, IsReferenceTaken(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing payload", func(t *testing.T) {
		store, _ := newMockStore(t)
		tx := newTx()
		tx.Payload = nil

		err := store.CreateTransaction(ctx, tx)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func TestStore_GetTransactionByReference(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		id, eventID, candidate := uuid.New(), uuid.New(), uuid.New()
		now := time.Now()

		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE reference = \\$1").
			WithArgs("VTP-ABC123").
			WillReturnRows(transactionRows().AddRow(
				id.String(), "VTP-ABC123", "VOTE", eventID.String(), "12.50", "GHS", "PENDING", "momo",
				nil, "Kofi", nil, nil, []byte(`{"candidateId":"`+candidate.String()+`","quantity":5}`), nil,
				now, now, now.Add(time.Minute), nil,
			))

		tx, err := store.GetTransactionByReference(ctx, "VTP-ABC123")
		require.NoError(t, err)
		assert.Equal(t, id, tx.ID)
		assert.Equal(t, models.KindVote, tx.Kind)
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("12.50")))
		assert.Equal(t, "Kofi", tx.Buyer.Name)
		assert.Equal(t, models.VotePayload{CandidateID: candidate, Quantity: 5}, tx.Payload)
		assert.NotNil(t, tx.ExpiresAt)
		assert.Nil(t, tx.PaidAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE reference = \\$1").
			WithArgs("missing").
			WillReturnRows(transactionRows())

		_, err := store.GetTransactionByReference(ctx, "missing")
		assert.True(t, errors.Is(err, apperrors.ErrTransactionNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MarkSucceeded(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	paidAt := time.Now()

	t.Run("pending row transitions", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE transactions\\s+SET status = 'SUCCESS'").
			WithArgs(id, paidAt, "psp-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := store.MarkSucceeded(ctx, id, paidAt, "psp-1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal row is left alone", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE transactions\\s+SET status = 'SUCCESS'").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := store.MarkSucceeded(ctx, id, paidAt, "")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MarkFailed(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE transactions\\s+SET status = 'FAILED'").
		WithArgs(id, models.ReasonExpired, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.MarkFailed(context.Background(), id, models.ReasonExpired, "")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertVoteBatch(t *testing.T) {
	ctx := context.Background()
	batch := &models.VoteBatch{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		CandidateID:   uuid.New(),
		Quantity:      10,
		CreatedAt:     time.Now(),
	}

	t.Run("inserts", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO votes").
			WithArgs(batch.ID, batch.TransactionID, batch.CandidateID, int64(10), "", "", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.InsertVoteBatch(ctx, batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate batch maps to already processed", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO votes").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "votes_transaction_id_key"})

		err := store.InsertVoteBatch(ctx, batch)
		assert.True(t, errors.Is(err, apperrors.ErrAlreadyProcessed))
	})
}

func TestStore_InsertTicketBatch_Duplicate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO tickets").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tickets_transaction_id_key"})

	err := store.InsertTicketBatch(context.Background(), &models.TicketBatch{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		TicketTypeID:  uuid.New(),
		Quantity:      2,
		Code:          "TKT-1",
	})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyProcessed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BatchExists(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM tickets WHERE transaction_id = \\$1\\)").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.BatchExists(context.Background(), models.KindTicket, id)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTicketTarget(t *testing.T) {
	store, mock := newMockStore(t)
	ticketType, eventID, organizer := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM ticket_types t\\s+JOIN events e").
		WithArgs(ticketType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "organizer_id", "status", "price", "currency", "capacity", "sold_count"}).
			AddRow(ticketType.String(), eventID.String(), organizer.String(), "UPCOMING", "50.00", "GHS", nil, int64(12)))

	target, err := store.GetTicketTarget(context.Background(), ticketType)
	require.NoError(t, err)
	assert.Equal(t, models.EventUpcoming, target.EventStatus)
	assert.Nil(t, target.Capacity)
	assert.Equal(t, int64(-1), target.Remaining())
	assert.True(t, target.UnitPrice.Equal(decimal.NewFromInt(50)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetVoteTarget_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	candidate := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM candidates c").
		WithArgs(candidate).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetVoteTarget(context.Background(), candidate)
	assert.True(t, errors.Is(err, apperrors.ErrTargetNotFound))
}

func TestStore_Increments(t *testing.T) {
	ctx := context.Background()

	t.Run("event totals use decimal strings", func(t *testing.T) {
		store, mock := newMockStore(t)
		eventID := uuid.New()

		mock.ExpectExec("UPDATE events\\s+SET total_votes = total_votes \\+ \\$2").
			WithArgs(eventID, int64(10), int64(0), "10.5").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.IncrementEventTotals(ctx, eventID, 10, 0, decimal.RequireFromString("10.50"))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row aborts", func(t *testing.T) {
		store, mock := newMockStore(t)
		candidate := uuid.New()

		mock.ExpectExec("UPDATE candidates SET vote_count = vote_count \\+ \\$2").
			WithArgs(candidate, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.IncrementCandidateVotes(ctx, candidate, 3)
		assert.True(t, errors.Is(err, apperrors.ErrTargetNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_TallyEventVotes(t *testing.T) {
	store, mock := newMockStore(t)
	eventID, category := uuid.New(), uuid.New()
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT c.id, c.category_id, c.name, COALESCE\\(SUM\\(v.quantity\\), 0\\)").
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "category_id", "name", "votes", "vote_count"}).
			AddRow(a.String(), category.String(), "Alpha", int64(30), int64(30)).
			AddRow(b.String(), category.String(), "Beta", int64(0), int64(0)))

	tallies, err := store.TallyEventVotes(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, tallies, 2)
	assert.Equal(t, a, tallies[0].CandidateID)
	assert.Equal(t, int64(30), tallies[0].Votes)
	assert.Equal(t, int64(0), tallies[1].Votes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store, mock := newMockStore(t)
		candidate := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE candidates").
			WithArgs(candidate, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(repo Repository) error {
			return repo.IncrementCandidateVotes(ctx, candidate, 1)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("boom")
		err := store.WithTransaction(ctx, func(repo Repository) error {
			return sentinel
		})
		assert.Equal(t, sentinel, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is reported", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		err := store.WithTransaction(ctx, func(repo Repository) error { return nil })
		assert.True(t, errors.Is(err, apperrors.ErrStoreCommit))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := store.WithTransaction(ctx, func(repo Repository) error {
			return repo.WithTransaction(ctx, func(Repository) error { return nil })
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("statement failure inside the unit of work is retryable", func(t *testing.T) {
		store, mock := newMockStore(t)
		candidate := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE candidates").
			WithArgs(candidate, int64(2)).
			WillReturnError(errors.New("could not serialize access"))
		mock.ExpectRollback()

		err := store.WithTransaction(ctx, func(repo Repository) error {
			return repo.IncrementCandidateVotes(ctx, candidate, 2)
		})
		assert.True(t, errors.Is(err, apperrors.ErrStoreCommit))
		assert.Contains(t, err.Error(), "failed to update candidate counters")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("statement failure outside a transaction is internal", func(t *testing.T) {
		store, mock := newMockStore(t)
		candidate := uuid.New()

		mock.ExpectExec("UPDATE candidates").
			WithArgs(candidate, int64(2)).
			WillReturnError(errors.New("connection refused"))

		err := store.IncrementCandidateVotes(ctx, candidate, 2)
		assert.True(t, errors.Is(err, apperrors.ErrInternal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
