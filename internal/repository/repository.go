package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create account for user with zero balance
	// Idempotent: if the account already exists returns it unchanged
	CreateAccount(ctx context.Context, userID uuid.UUID) (models.Account, error)

	// Get account by owner or by account id
	// If not found must return apperrors.ErrAccountNotFound
	GetAccount(ctx context.Context, userID uuid.UUID) (models.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)

	// Lock account rows for the rest of the current transaction.
	// Rows are locked in ascending id order so two transfers touching
	// the same pair of accounts can't deadlock each other.
	// Every requested id must exist, otherwise apperrors.ErrAccountNotFound.
	LockAccounts(ctx context.Context, ids ...uuid.UUID) ([]models.Account, error)

	// Add delta (may be negative) to the account balance and return
	// the updated account. The accounts table forbids negative
	// balances, a violation maps to apperrors.ErrBalanceInsufficient.
	AddToBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (models.Account, error)

	// Delete the user's account. Part of the user purge lifecycle rule,
	// must only run after the account's transactions are removed.
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}

// Transaction (ledger record) repository interface
type TransactionRepo interface {
	// Persist one immutable ledger record
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// List records where the account is sender or receiver, newest first
	ListAccountTransactions(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error)

	// Sum of successful TRANSFER amounts sent by the account
	// with created_at in [from, to)
	SumTransferred(ctx context.Context, senderID uuid.UUID, from time.Time, to time.Time) (decimal.Decimal, error)

	// Remove every record referencing the account (user purge only)
	DeleteAccountTransactions(ctx context.Context, accountID uuid.UUID) error
}

// Profile (registered mobile) repository interface
type ProfileRepo interface {
	// Create profile binding mobile to user
	// If the mobile is taken must return apperrors.ErrMobileAlreadyRegistered
	CreateProfile(ctx context.Context, userID uuid.UUID, mobile string) (models.Profile, error)

	// Lookup by mobile or by owner
	// If not found must return apperrors.ErrMobileNotRegistered
	GetProfileByMobile(ctx context.Context, mobile string) (models.Profile, error)
	GetProfileByUser(ctx context.Context, userID uuid.UUID) (models.Profile, error)

	DeleteProfile(ctx context.Context, userID uuid.UUID) error
}

// Storage aggregates the repositories over one database handle.
// InTx runs fn against a storage bound to a single transaction:
// commits if fn returns nil, rolls back everything otherwise.
type Storage interface {
	Account() AccountRepo
	Transaction() TransactionRepo
	Profile() ProfileRepo

	InTx(ctx context.Context, fn func(s Storage) error) error
}
