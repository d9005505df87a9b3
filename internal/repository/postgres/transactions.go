package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, created_at, sender_id, receiver_id, amount, kind, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, sender_id, receiver_id, amount, kind, status
`

func (r *TransactionRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createTransaction, t.ID, t.CreatedAt, t.SenderID, t.ReceiverID, t.Amount, t.Kind, t.Status)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listAccountTransactions = `-- name: ListAccountTransactions
SELECT id, created_at, sender_id, receiver_id, amount, kind, status FROM transactions
WHERE sender_id = $1 OR receiver_id = $1
ORDER BY created_at DESC
`

func (r *TransactionRepo) ListAccountTransactions(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listAccountTransactions, accountID)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

// Daily limit source: only committed transfers count, the window
// bounds are computed by the limits policy in its configured zone
const sumTransferred = `-- name: SumTransferred
SELECT COALESCE(SUM(amount), 0) FROM transactions
WHERE sender_id = $1
  AND kind = 'TRANSFER'
  AND status = 'SUCCESS'
  AND created_at >= $2
  AND created_at < $3
`

func (r *TransactionRepo) SumTransferred(ctx context.Context, senderID uuid.UUID, from time.Time, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.DB.QueryRow(ctx, sumTransferred, senderID, from, to).Scan(&total)
	if err != nil {
		return total, fmt.Errorf("db error: %w", err)
	}

	return total, nil
}

const deleteAccountTransactions = `-- name: DeleteAccountTransactions
DELETE FROM transactions
WHERE sender_id = $1 OR receiver_id = $1
`

func (r *TransactionRepo) DeleteAccountTransactions(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteAccountTransactions, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.CreatedAt, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Kind, &t.Status)
	return t, err
}
