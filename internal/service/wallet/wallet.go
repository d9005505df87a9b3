// Package wallet implements the atomic balance-transfer engine.
//
// Every mutating operation runs as one storage transaction: balances
// change and the ledger record appears together or not at all. The
// daily-limit and balance checks for a transfer are re-evaluated
// inside that transaction while the sender row lock is held, so two
// concurrent transfers can't both pass a check against stale state.
package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/models"
	"github.com/osemenov/walletd/internal/repository"
	"github.com/osemenov/walletd/internal/service/limits"
	"github.com/osemenov/walletd/internal/service/resolver"
)

// Recorder receives one observation per finished ledger operation
type Recorder interface {
	Observe(kind string, outcome string, amount float64, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) Observe(string, string, float64, time.Duration) {}

type Service struct {
	storage  repository.Storage
	limits   *limits.Policy
	resolver *resolver.Resolver
	metrics  Recorder

	// ledger timestamp source, swappable in tests
	now func() time.Time
}

func NewService(storage repository.Storage, limitPolicy *limits.Policy, m Recorder) *Service {
	if limitPolicy == nil {
		limitPolicy = limits.New(limits.DefaultDailyLimit, time.UTC)
	}
	if m == nil {
		m = noopRecorder{}
	}

	return &Service{
		storage:  storage,
		limits:   limitPolicy,
		resolver: resolver.New(storage),
		metrics:  m,
		now:      time.Now,
	}
}

// RegisterAccount creates a zero-balance account for the user.
// Idempotent: a second call returns the existing account untouched.
func (s *Service) RegisterAccount(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	return s.storage.Account().CreateAccount(ctx, userID)
}

// RegisterMobile binds a mobile number to the user for transfers by
// number. Returns apperrors.ErrMobileAlreadyRegistered if taken.
func (s *Service) RegisterMobile(ctx context.Context, userID uuid.UUID, mobile string) (models.Profile, error) {
	return s.storage.Profile().CreateProfile(ctx, userID, mobile)
}

// TopUp credits the user's account and appends the SUCCESS TOPUP
// record as one unit. The daily limit does not apply to top-ups.
func (s *Service) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Transaction, error) {
	started := time.Now()
	record, err := s.topUp(ctx, userID, amount)

	value, _ := amount.Float64()
	s.metrics.Observe(models.TransactionKindTopUp, outcome(err), value, time.Since(started))

	return record, err
}

func (s *Service) topUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Transaction, error) {
	var record models.Transaction

	if !amount.IsPositive() {
		return record, apperrors.ErrInvalidAmount
	}

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		account, err := st.Account().GetAccount(ctx, userID)
		if err != nil {
			return err
		}

		if _, err := st.Account().AddToBalance(ctx, account.ID, amount); err != nil {
			return err
		}

		record, err = st.Transaction().CreateTransaction(ctx, models.Transaction{
			CreatedAt: s.now(),
			SenderID:  &account.ID,
			Amount:    amount,
			Kind:      models.TransactionKindTopUp,
			Status:    models.TransactionStatusSuccess,
		})
		return err
	})

	return record, err
}

// Transfer moves amount from the sender's account to the account with
// the given id. Preconditions, first failure wins: positive amount,
// receiver exists, not a self transfer, daily limit, sender balance.
func (s *Service) Transfer(ctx context.Context, senderID uuid.UUID, receiverAccountID uuid.UUID, amount decimal.Decimal) (models.Transaction, error) {
	started := time.Now()
	record, err := s.transferTo(ctx, senderID, amount, func(ctx context.Context) (models.Account, error) {
		account, err := s.resolver.ByAccountID(ctx, receiverAccountID)
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			return account, apperrors.ErrReceiverNotFound
		}
		return account, err
	})

	value, _ := amount.Float64()
	s.metrics.Observe(models.TransactionKindTransfer, outcome(err), value, time.Since(started))

	return record, err
}

// TransferByMobile is Transfer with the receiver resolved through a
// registered mobile number (apperrors.ErrMobileNotRegistered on miss).
func (s *Service) TransferByMobile(ctx context.Context, senderID uuid.UUID, mobile string, amount decimal.Decimal) (models.Transaction, error) {
	started := time.Now()
	record, err := s.transferTo(ctx, senderID, amount, func(ctx context.Context) (models.Account, error) {
		return s.resolver.ByMobile(ctx, mobile)
	})

	value, _ := amount.Float64()
	s.metrics.Observe(models.TransactionKindTransfer, outcome(err), value, time.Since(started))

	return record, err
}

func (s *Service) transferTo(ctx context.Context, senderID uuid.UUID, amount decimal.Decimal, resolve func(context.Context) (models.Account, error)) (models.Transaction, error) {
	var record models.Transaction

	if !amount.IsPositive() {
		return record, apperrors.ErrInvalidAmount
	}

	receiver, err := resolve(ctx)
	if err != nil {
		return record, err
	}

	if receiver.UserID == senderID {
		return record, apperrors.ErrSelfTransfer
	}

	asOf := s.now()

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		sender, err := st.Account().GetAccount(ctx, senderID)
		if err != nil {
			return err
		}

		locked, err := st.Account().LockAccounts(ctx, sender.ID, receiver.ID)
		if err != nil {
			return err
		}

		// from here on use only state read under the locks
		for _, a := range locked {
			if a.ID == sender.ID {
				sender = a
			}
		}

		if err := s.limits.Check(ctx, st.Transaction(), sender.ID, amount, asOf); err != nil {
			return err
		}

		if sender.Balance.LessThan(amount) {
			return apperrors.ErrBalanceInsufficient
		}

		if _, err := st.Account().AddToBalance(ctx, sender.ID, amount.Neg()); err != nil {
			return err
		}
		if _, err := st.Account().AddToBalance(ctx, receiver.ID, amount); err != nil {
			return err
		}

		record, err = st.Transaction().CreateTransaction(ctx, models.Transaction{
			CreatedAt:  asOf,
			SenderID:   &sender.ID,
			ReceiverID: &receiver.ID,
			Amount:     amount,
			Kind:       models.TransactionKindTransfer,
			Status:     models.TransactionStatusSuccess,
		})
		return err
	})

	return record, err
}

// Balance returns the user's account with its current balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	return s.storage.Account().GetAccount(ctx, userID)
}

// DailySpend returns the total the user has transferred today, for
// showing the remaining limit headroom.
func (s *Service) DailySpend(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.storage.Account().GetAccount(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return s.limits.SpentToday(ctx, s.storage.Transaction(), account.ID, s.now())
}

// DailyLimit reports the configured cap.
func (s *Service) DailyLimit() decimal.Decimal {
	return s.limits.Limit()
}

// History lists the ledger records where the user is sender or
// receiver, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	account, err := s.storage.Account().GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.storage.Transaction().ListAccountTransactions(ctx, account.ID)
}

// PurgeUser removes the user's profile, account, and the records
// referencing the account, in one transaction. This is the explicit
// lifecycle rule replacing relational cascade deletes: removing a
// user's identity removes its dependent wallet state.
func (s *Service) PurgeUser(ctx context.Context, userID uuid.UUID) error {
	return s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := st.Profile().DeleteProfile(ctx, userID); err != nil {
			return err
		}

		account, err := st.Account().GetAccount(ctx, userID)
		switch {
		case errors.Is(err, apperrors.ErrAccountNotFound):
			return nil
		case err != nil:
			return err
		}

		if err := st.Transaction().DeleteAccountTransactions(ctx, account.ID); err != nil {
			return err
		}

		return st.Account().DeleteAccount(ctx, userID)
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, apperrors.ErrReceiverNotFound):
		return "receiver_not_found"
	case errors.Is(err, apperrors.ErrMobileNotRegistered):
		return "mobile_not_registered"
	case errors.Is(err, apperrors.ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, apperrors.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		return "insufficient_balance"
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return "account_not_found"
	default:
		return "error"
	}
}
