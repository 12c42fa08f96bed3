package ledger

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log"

	"github.com/lib/pq"

	apperrors "github.com/votepay/backend/internal/errors"
)

// SQLExecutor represents both sql.DB and sql.Tx
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ SQLExecutor = (*sql.DB)(nil)
	_ SQLExecutor = (*sql.Tx)(nil)
	_ Repository  = (*Store)(nil)
)

// Store is the Postgres implementation of Repository
type Store struct {
	db       *sql.DB
	executor SQLExecutor
	inTx     bool
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		executor: db,
	}
}

// WithTransaction executes fn within a database transaction. Calls made on an
// already transactional store join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[LEDGER] Failed to begin transaction: %v", err)
		return apperrors.ErrStoreCommit.Wrap(err)
	}

	txStore := &Store{
		db:       s.db,
		executor: tx,
		inTx:     true,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Failed to commit transaction: %v", err)
		return apperrors.ErrStoreCommit.Wrap(err)
	}
	return nil
}

// uniqueViolation reports the violated constraint name for a 23505 error
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

// storeError classifies a statement failure. Inside a unit of work the whole
// transaction is rolled back and may be retried.
func (s *Store) storeError(message string, err error) error {
	if s.inTx {
		return apperrors.ErrStoreCommit.WithDetails(message).Wrap(err)
	}
	return apperrors.NewAppError(apperrors.InternalError, message).Wrap(err)
}
