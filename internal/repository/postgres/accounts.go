package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

// Create account with zero balance for the user
// If the user already has one, return it as is (the CTE sees the
// pre-statement snapshot, so exactly one branch produces a row)
const createAccount = `-- name: CreateAccount
WITH insert_account AS (
	INSERT INTO accounts (id, user_id, balance, created_at)
	VALUES ($1, $2, 0, $3)
	ON CONFLICT (user_id) DO NOTHING
	RETURNING id, user_id, balance, created_at
)
SELECT id, user_id, balance, created_at FROM insert_account
UNION
SELECT id, user_id, balance, created_at FROM accounts WHERE user_id = $2
`

func (r *AccountRepo) CreateAccount(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, createAccount, uuid.New(), userID, time.Now())
	a, err := pgx.CollectOneRow(rows, rowToAccount)
	if err != nil {
		return a, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

const getAccount = `-- name: GetAccount
SELECT id, user_id, balance, created_at FROM accounts
WHERE user_id = $1
`

func (r *AccountRepo) GetAccount(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccount, userID)
	return collectAccount(rows)
}

const getAccountByID = `-- name: GetAccountByID
SELECT id, user_id, balance, created_at FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	return collectAccount(rows)
}

const lockAccount = `-- name: LockAccount
SELECT id, user_id, balance, created_at FROM accounts
WHERE id = $1
FOR UPDATE
`

// LockAccounts takes row locks one account at a time in ascending id
// order. Two transfers moving funds in opposite directions between the
// same accounts then always request the locks in the same order and
// can't deadlock each other.
func (r *AccountRepo) LockAccounts(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error) {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	accounts := make([]models.Account, 0, len(sorted))
	for _, id := range sorted {
		rows, _ := r.DB.Query(ctx, lockAccount, id)
		a, err := pgx.CollectOneRow(rows, rowToAccount)

		switch {
		case err == nil:
			accounts = append(accounts, a)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.ErrAccountNotFound
		default:
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	return accounts, nil
}

const addToBalance = `-- name: AddToBalance
UPDATE accounts
SET balance = balance + $2
WHERE id = $1
RETURNING id, user_id, balance, created_at
`

func (r *AccountRepo) AddToBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, addToBalance, accountID, delta)
	a, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return a, apperrors.ErrAccountNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
		return a, apperrors.ErrBalanceInsufficient
	}

	return a, fmt.Errorf("db error: %w", err)
}

const deleteAccount = `-- name: DeleteAccount
DELETE FROM accounts
WHERE user_id = $1
`

func (r *AccountRepo) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteAccount, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAccountNotFound
	}

	return nil
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	a, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return a, apperrors.ErrAccountNotFound
	default:
		return a, fmt.Errorf("db error: %w", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt)
	return a, err
}
