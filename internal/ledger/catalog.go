package ledger

import (
	"context"
	"database/sql"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/models"
)

func (s *Store) GetVoteTarget(ctx context.Context, candidateID uuid.UUID) (*models.VoteTarget, error) {
	query := `SELECT c.id, c.category_id, cat.event_id, e.organizer_id, e.status, e.vote_price, e.currency
		FROM candidates c
		JOIN categories cat ON cat.id = c.category_id
		JOIN events e ON e.id = cat.event_id
		WHERE c.id = $1`

	var (
		target        models.VoteTarget
		status, price string
	)
	err := s.executor.QueryRowContext(ctx, query, candidateID).Scan(
		&target.CandidateID,
		&target.CategoryID,
		&target.EventID,
		&target.OrganizerID,
		&status,
		&price,
		&target.Currency,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTargetNotFound.WithDetails("candidate " + candidateID.String())
	}
	if err != nil {
		return nil, s.storeError("failed to load candidate", err)
	}

	target.EventStatus = models.EventStatus(status)
	if target.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, apperrors.ErrInvalidPrice.Wrap(err)
	}
	return &target, nil
}

func (s *Store) GetTicketTarget(ctx context.Context, ticketTypeID uuid.UUID) (*models.TicketTarget, error) {
	query := `SELECT t.id, t.event_id, e.organizer_id, e.status, t.price, e.currency, t.capacity, t.sold_count
		FROM ticket_types t
		JOIN events e ON e.id = t.event_id
		WHERE t.id = $1`

	var (
		target        models.TicketTarget
		status, price string
		capacity      sql.NullInt64
	)
	err := s.executor.QueryRowContext(ctx, query, ticketTypeID).Scan(
		&target.TicketTypeID,
		&target.EventID,
		&target.OrganizerID,
		&status,
		&price,
		&target.Currency,
		&capacity,
		&target.Sold,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTargetNotFound.WithDetails("ticket type " + ticketTypeID.String())
	}
	if err != nil {
		return nil, s.storeError("failed to load ticket type", err)
	}

	target.EventStatus = models.EventStatus(status)
	if capacity.Valid {
		c := capacity.Int64
		target.Capacity = &c
	}
	if target.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, apperrors.ErrInvalidPrice.Wrap(err)
	}
	return &target, nil
}

// BatchExists is the idempotency guard: a transaction owns at most one batch
func (s *Store) BatchExists(ctx context.Context, kind models.TransactionKind, transactionID uuid.UUID) (bool, error) {
	var query string
	switch kind {
	case models.KindVote:
		query = `SELECT EXISTS(SELECT 1 FROM votes WHERE transaction_id = $1)`
	case models.KindTicket:
		query = `SELECT EXISTS(SELECT 1 FROM tickets WHERE transaction_id = $1)`
	default:
		return false, apperrors.ErrValidation.WithDetails("unknown transaction kind " + string(kind))
	}

	var exists bool
	if err := s.executor.QueryRowContext(ctx, query, transactionID).Scan(&exists); err != nil {
		return false, s.storeError("failed to check batch", err)
	}
	return exists, nil
}

func (s *Store) InsertVoteBatch(ctx context.Context, batch *models.VoteBatch) error {
	query := `INSERT INTO votes (id, transaction_id, candidate_id, quantity, voter_name, voter_phone, voter_email, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)`

	_, err := s.executor.ExecContext(ctx, query,
		batch.ID,
		batch.TransactionID,
		batch.CandidateID,
		batch.Quantity,
		batch.VoterName,
		batch.VoterPhone,
		batch.VoterEmail,
		batch.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "votes_transaction_id_key" {
			return apperrors.ErrAlreadyProcessed
		}
		log.Printf("[LEDGER] Failed to insert vote batch for %s: %v", batch.TransactionID, err)
		return s.storeError("failed to insert vote batch", err)
	}
	return nil
}

func (s *Store) InsertTicketBatch(ctx context.Context, batch *models.TicketBatch) error {
	query := `INSERT INTO tickets (id, transaction_id, ticket_type_id, quantity, code, holder_name, holder_phone, holder_email, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)`

	_, err := s.executor.ExecContext(ctx, query,
		batch.ID,
		batch.TransactionID,
		batch.TicketTypeID,
		batch.Quantity,
		batch.Code,
		batch.HolderName,
		batch.HolderPhone,
		batch.HolderEmail,
		batch.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "tickets_transaction_id_key" {
			return apperrors.ErrAlreadyProcessed
		}
		log.Printf("[LEDGER] Failed to insert ticket batch for %s: %v", batch.TransactionID, err)
		return s.storeError("failed to insert ticket batch", err)
	}
	return nil
}

func (s *Store) IncrementCandidateVotes(ctx context.Context, candidateID uuid.UUID, quantity int64) error {
	query := `UPDATE candidates SET vote_count = vote_count + $2, updated_at = NOW() WHERE id = $1`
	return s.increment(ctx, "candidate", query, candidateID, quantity)
}

func (s *Store) IncrementCategoryVotes(ctx context.Context, categoryID uuid.UUID, quantity int64) error {
	query := `UPDATE categories SET total_votes = total_votes + $2, updated_at = NOW() WHERE id = $1`
	return s.increment(ctx, "category", query, categoryID, quantity)
}

func (s *Store) IncrementTicketTypeSold(ctx context.Context, ticketTypeID uuid.UUID, quantity int64) error {
	query := `UPDATE ticket_types SET sold_count = sold_count + $2, updated_at = NOW() WHERE id = $1`
	return s.increment(ctx, "ticket type", query, ticketTypeID, quantity)
}

func (s *Store) IncrementEventTotals(ctx context.Context, eventID uuid.UUID, votes, tickets int64, revenue decimal.Decimal) error {
	query := `UPDATE events
		SET total_votes = total_votes + $2, tickets_sold = tickets_sold + $3,
			total_revenue = total_revenue + $4, updated_at = NOW()
		WHERE id = $1`
	return s.increment(ctx, "event", query, eventID, votes, tickets, revenue.String())
}

func (s *Store) IncrementOrganizerRevenue(ctx context.Context, organizerID uuid.UUID, revenue decimal.Decimal) error {
	query := `UPDATE organizers SET total_revenue = total_revenue + $2, updated_at = NOW() WHERE id = $1`
	return s.increment(ctx, "organizer", query, organizerID, revenue.String())
}

// increment applies an in-database delta. A missing row is an error so the
// surrounding transaction rolls back instead of silently skipping a counter.
func (s *Store) increment(ctx context.Context, entity, query string, id uuid.UUID, deltas ...interface{}) error {
	args := append([]interface{}{id}, deltas...)
	result, err := s.executor.ExecContext(ctx, query, args...)
	if err != nil {
		return s.storeError("failed to update "+entity+" counters", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return s.storeError("failed to update "+entity+" counters", err)
	}
	if rows == 0 {
		return apperrors.ErrTargetNotFound.WithDetails(entity + " " + id.String())
	}
	return nil
}

// TallyEventVotes sums vote batches per candidate. Counter carries the
// denormalized vote_count so callers can detect drift.
func (s *Store) TallyEventVotes(ctx context.Context, eventID uuid.UUID) ([]models.CandidateTally, error) {
	query := `SELECT c.id, c.category_id, c.name, COALESCE(SUM(v.quantity), 0) AS votes, c.vote_count
		FROM candidates c
		JOIN categories cat ON cat.id = c.category_id
		LEFT JOIN votes v ON v.candidate_id = c.id
		WHERE cat.event_id = $1
		GROUP BY c.id, c.category_id, c.name, c.vote_count
		ORDER BY votes DESC, c.name`

	rows, err := s.executor.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, s.storeError("failed to tally votes", err)
	}
	defer rows.Close()

	tallies := []models.CandidateTally{}
	for rows.Next() {
		var t models.CandidateTally
		if err := rows.Scan(&t.CandidateID, &t.CategoryID, &t.Name, &t.Votes, &t.Counter); err != nil {
			return nil, s.storeError("failed to scan tally", err)
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("failed to tally votes", err)
	}
	return tallies, nil
}
