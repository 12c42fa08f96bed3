package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/votepay/backend/internal/errors"
	"github.com/votepay/backend/internal/models"
)

const transactionColumns = `id, reference, kind, event_id, amount, currency, status, payment_provider,
	provider_tx_id, customer_name, customer_phone, customer_email, payload, failure_reason,
	created_at, updated_at, expires_at, paid_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	payload, err := models.EncodePayload(tx.Payload)
	if err != nil {
		return apperrors.ErrValidation.Wrap(err)
	}

	query := `INSERT INTO transactions (id, reference, kind, event_id, amount, currency, status,
			payment_provider, provider_tx_id, customer_name, customer_phone, customer_email,
			payload, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
			$13, $14, $15, $16)`

	_, err = s.executor.ExecContext(ctx, query,
		tx.ID,
		tx.Reference,
		string(tx.Kind),
		tx.EventID,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Status),
		tx.PaymentProvider,
		tx.ProviderTxID,
		tx.Buyer.Name,
		tx.Buyer.Phone,
		tx.Buyer.Email,
		string(payload),
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.ExpiresAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "transactions_reference_key" {
			return ErrReferenceTaken
		}
		log.Printf("[LEDGER] Failed to insert transaction %s: %v", tx.Reference, err)
		return s.storeError("failed to create transaction", err)
	}
	return nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return s.queryTransaction(ctx, query, id)
}

func (s *Store) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	return s.queryTransaction(ctx, query, reference)
}

func (s *Store) LockTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return s.queryTransaction(ctx, query, id)
}

func (s *Store) queryTransaction(ctx context.Context, query string, arg interface{}) (*models.Transaction, error) {
	tx, err := scanTransaction(s.executor.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, s.storeError("failed to load transaction", err)
	}
	return tx, nil
}

// MarkSucceeded moves a PENDING transaction to SUCCESS. It reports false when
// the row was no longer PENDING.
func (s *Store) MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time, providerTxID string) (bool, error) {
	query := `UPDATE transactions
		SET status = 'SUCCESS', paid_at = $2, updated_at = $2,
			provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id)
		WHERE id = $1 AND status = 'PENDING'`

	return s.execTransition(ctx, query, id, paidAt, providerTxID)
}

// MarkFailed moves a PENDING transaction to FAILED with a reason
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason, providerTxID string) (bool, error) {
	query := `UPDATE transactions
		SET status = 'FAILED', failure_reason = $2, updated_at = NOW(),
			provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id)
		WHERE id = $1 AND status = 'PENDING'`

	return s.execTransition(ctx, query, id, reason, providerTxID)
}

func (s *Store) execTransition(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := s.executor.ExecContext(ctx, query, args...)
	if err != nil {
		return false, s.storeError("failed to update transaction status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, s.storeError("failed to update transaction status", err)
	}
	return rows == 1, nil
}

// ListExpiredPending returns PENDING transactions whose session expired before the cutoff
func (s *Store) ListExpiredPending(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	rows, err := s.executor.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, s.storeError("failed to list pending transactions", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, s.storeError("failed to scan transaction", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("failed to list pending transactions", err)
	}
	return result, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx                               models.Transaction
		kind, status, amount             string
		providerTxID, name, phone, email sql.NullString
		failureReason                    sql.NullString
		payload                          []byte
		expiresAt, paidAt                sql.NullTime
	)

	err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&kind,
		&tx.EventID,
		&amount,
		&tx.Currency,
		&status,
		&tx.PaymentProvider,
		&providerTxID,
		&name,
		&phone,
		&email,
		&payload,
		&failureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&expiresAt,
		&paidAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Kind = models.TransactionKind(kind)
	tx.Status = models.TransactionStatus(status)
	tx.ProviderTxID = providerTxID.String
	tx.Buyer = models.Buyer{Name: name.String, Phone: phone.String, Email: email.String}
	tx.FailureReason = failureReason.String

	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	tx.Payload, err = models.DecodePayload(tx.Kind, payload)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		tx.ExpiresAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		tx.PaidAt = &t
	}
	return &tx, nil
}

// IsReferenceTaken reports whether err is a reference collision
func IsReferenceTaken(err error) bool {
	return stderrors.Is(err, ErrReferenceTaken)
}
