package wallet

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/models"
	"github.com/osemenov/walletd/internal/repository"
	"github.com/osemenov/walletd/internal/repository/postgres"
	"github.com/osemenov/walletd/internal/service/limits"
	"github.com/osemenov/walletd/internal/testutil"
)

func TestWalletService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper to run the service against a transaction that is rolled
	// back when the subtest ends
	inTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			fn(NewService(storage, nil, nil), storage)
		})
	}

	t.Run("RegisterAccount", func(t *testing.T) {
		t.Run("idempotent", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				userID := uuid.New()

				first, err := s.RegisterAccount(t.Context(), userID)
				require.NoError(t, err)

				_, err = s.TopUp(t.Context(), userID, decimal.NewFromInt(500))
				require.NoError(t, err)

				second, err := s.RegisterAccount(t.Context(), userID)

				require.NoError(t, err, "registering twice should be a no-op")
				require.Equal(t, first.ID, second.ID)
				require.True(t, second.Balance.Equal(decimal.NewFromInt(500)), "balance must survive re-registration")
			})
		})
	})

	t.Run("TopUp", func(t *testing.T) {
		t.Run("credits and records", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				userID := uuid.New()
				account, err := s.RegisterAccount(t.Context(), userID)
				require.NoError(t, err)

				record, err := s.TopUp(t.Context(), userID, decimal.NewFromInt(1000))

				require.NoError(t, err)
				require.Equal(t, models.TransactionKindTopUp, record.Kind)
				require.Equal(t, models.TransactionStatusSuccess, record.Status)
				require.Equal(t, account.ID, *record.SenderID)
				require.Nil(t, record.ReceiverID)

				balance, err := s.Balance(t.Context(), userID)
				require.NoError(t, err)
				require.True(t, balance.Balance.Equal(decimal.NewFromInt(1000)), "balance should become 1000")
			})
		})

		t.Run("non positive amount", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				userID := uuid.New()
				_, err := s.RegisterAccount(t.Context(), userID)
				require.NoError(t, err)

				_, err = s.TopUp(t.Context(), userID, decimal.Zero)
				require.ErrorIs(t, err, apperrors.ErrInvalidAmount)

				_, err = s.TopUp(t.Context(), userID, decimal.NewFromInt(-10))
				require.ErrorIs(t, err, apperrors.ErrInvalidAmount)

				history, err := s.History(t.Context(), userID)
				require.NoError(t, err)
				require.Empty(t, history, "failed attempts must not be recorded")
			})
		})

		t.Run("no account", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.TopUp(t.Context(), uuid.New(), decimal.NewFromInt(10))
				require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("Transfer", func(t *testing.T) {
		// register two accounts, top up the sender
		setup := func(t *testing.T, s *Service, senderBalance int64) (sender models.Account, receiver models.Account) {
			sender, err := s.RegisterAccount(t.Context(), uuid.New())
			require.NoError(t, err)
			receiver, err = s.RegisterAccount(t.Context(), uuid.New())
			require.NoError(t, err)

			if senderBalance > 0 {
				_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(senderBalance))
				require.NoError(t, err)
			}
			return sender, receiver
		}

		t.Run("moves funds and records", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, receiver := setup(t, s, 500)

				_, err := s.TopUp(t.Context(), receiver.UserID, decimal.NewFromInt(100))
				require.NoError(t, err)

				record, err := s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(300))

				require.NoError(t, err)
				require.Equal(t, models.TransactionKindTransfer, record.Kind)
				require.Equal(t, models.TransactionStatusSuccess, record.Status)
				require.Equal(t, sender.ID, *record.SenderID)
				require.Equal(t, receiver.ID, *record.ReceiverID)
				require.True(t, record.Amount.Equal(decimal.NewFromInt(300)))

				senderAfter, err := s.Balance(t.Context(), sender.UserID)
				require.NoError(t, err)
				require.True(t, senderAfter.Balance.Equal(decimal.NewFromInt(200)), "sender should hold 200")

				receiverAfter, err := s.Balance(t.Context(), receiver.UserID)
				require.NoError(t, err)
				require.True(t, receiverAfter.Balance.Equal(decimal.NewFromInt(400)), "receiver should hold 400")
			})
		})

		t.Run("insufficient balance", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, receiver := setup(t, s, 100)

				_, err := s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(300))

				require.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)

				senderAfter, err := s.Balance(t.Context(), sender.UserID)
				require.NoError(t, err)
				require.True(t, senderAfter.Balance.Equal(decimal.NewFromInt(100)), "balances must stay unchanged")

				history, err := s.History(t.Context(), receiver.UserID)
				require.NoError(t, err)
				require.Empty(t, history, "no record for a failed transfer")
			})
		})

		t.Run("invalid amount", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, receiver := setup(t, s, 100)

				_, err := s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.Zero)
				require.ErrorIs(t, err, apperrors.ErrInvalidAmount)
			})
		})

		t.Run("receiver not found", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, _ := setup(t, s, 100)

				_, err := s.Transfer(t.Context(), sender.UserID, uuid.New(), decimal.NewFromInt(10))
				require.ErrorIs(t, err, apperrors.ErrReceiverNotFound)
			})
		})

		t.Run("self transfer", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, _ := setup(t, s, 100)

				_, err := s.Transfer(t.Context(), sender.UserID, sender.ID, decimal.NewFromInt(10))
				require.ErrorIs(t, err, apperrors.ErrSelfTransfer)
			})
		})

		t.Run("limit exceeded in one call", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, receiver := setup(t, s, 200000)

				_, err := s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(100001))

				require.ErrorIs(t, err, apperrors.ErrLimitExceeded, "default cap is 100000")

				senderAfter, err := s.Balance(t.Context(), sender.UserID)
				require.NoError(t, err)
				require.True(t, senderAfter.Balance.Equal(decimal.NewFromInt(200000)))
			})
		})

		t.Run("limit accumulates over the day", func(t *testing.T) {
			testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
				storage := postgres.NewStorage(tx)
				s := NewService(storage, limits.New(decimal.NewFromInt(100), time.UTC), nil)

				sender, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				receiver, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(1000))
				require.NoError(t, err)

				day := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
				s.now = func() time.Time { return day }

				_, err = s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(60))
				require.NoError(t, err)

				_, err = s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(50))
				require.ErrorIs(t, err, apperrors.ErrLimitExceeded, "60 + 50 breaks the cap of 100")

				spent, err := s.DailySpend(t.Context(), sender.UserID)
				require.NoError(t, err)
				require.True(t, spent.Equal(decimal.NewFromInt(60)), "only the committed transfer counts")

				// next day the window is empty again
				s.now = func() time.Time { return day.AddDate(0, 0, 1) }

				_, err = s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(50))
				require.NoError(t, err, "the cap applies per calendar day")
			})
		})
	})

	t.Run("TransferByMobile", func(t *testing.T) {
		t.Run("resolves receiver", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				receiver, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				_, err = s.RegisterMobile(t.Context(), receiver.UserID, "9990001122")
				require.NoError(t, err)
				_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(100))
				require.NoError(t, err)

				record, err := s.TransferByMobile(t.Context(), sender.UserID, "9990001122", decimal.NewFromInt(40))

				require.NoError(t, err)
				require.Equal(t, receiver.ID, *record.ReceiverID)

				receiverAfter, err := s.Balance(t.Context(), receiver.UserID)
				require.NoError(t, err)
				require.True(t, receiverAfter.Balance.Equal(decimal.NewFromInt(40)))
			})
		})

		t.Run("mobile not registered", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(100))
				require.NoError(t, err)

				_, err = s.TransferByMobile(t.Context(), sender.UserID, "0000000000", decimal.NewFromInt(40))

				require.ErrorIs(t, err, apperrors.ErrMobileNotRegistered)

				senderAfter, err := s.Balance(t.Context(), sender.UserID)
				require.NoError(t, err)
				require.True(t, senderAfter.Balance.Equal(decimal.NewFromInt(100)), "nothing moves on resolution failure")
			})
		})

		t.Run("own mobile", func(t *testing.T) {
			inTx(t, func(s *Service, _ repository.Storage) {
				sender, err := s.RegisterAccount(t.Context(), uuid.New())
				require.NoError(t, err)
				_, err = s.RegisterMobile(t.Context(), sender.UserID, "9990001122")
				require.NoError(t, err)

				_, err = s.TransferByMobile(t.Context(), sender.UserID, "9990001122", decimal.NewFromInt(10))
				require.ErrorIs(t, err, apperrors.ErrSelfTransfer)
			})
		})
	})

	t.Run("History", func(t *testing.T) {
		inTx(t, func(s *Service, _ repository.Storage) {
			sender, err := s.RegisterAccount(t.Context(), uuid.New())
			require.NoError(t, err)
			receiver, err := s.RegisterAccount(t.Context(), uuid.New())
			require.NoError(t, err)

			moments := []time.Time{
				time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 15, 11, 0, 0, 0, time.UTC),
			}
			s.now = func() time.Time { return moments[0] }

			topup, err := s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(100))
			require.NoError(t, err)

			s.now = func() time.Time { return moments[1] }

			transfer, err := s.Transfer(t.Context(), sender.UserID, receiver.ID, decimal.NewFromInt(30))
			require.NoError(t, err)

			history, err := s.History(t.Context(), sender.UserID)
			require.NoError(t, err)
			require.Len(t, history, 2)
			require.Equal(t, transfer.ID, history[0].ID, "newest record first")
			require.Equal(t, topup.ID, history[1].ID)
			for _, record := range history {
				require.True(t, record.Touches(sender.ID), "listed records must reference the queried account")
				require.False(t, record.Touches(uuid.New()))
			}

			receiverHistory, err := s.History(t.Context(), receiver.UserID)
			require.NoError(t, err)
			require.Len(t, receiverHistory, 1, "receiver sees the incoming transfer only")
			require.Equal(t, transfer.ID, receiverHistory[0].ID)
		})
	})

	t.Run("PurgeUser", func(t *testing.T) {
		inTx(t, func(s *Service, storage repository.Storage) {
			userID := uuid.New()
			account, err := s.RegisterAccount(t.Context(), userID)
			require.NoError(t, err)
			_, err = s.RegisterMobile(t.Context(), userID, "9990001122")
			require.NoError(t, err)
			_, err = s.TopUp(t.Context(), userID, decimal.NewFromInt(100))
			require.NoError(t, err)

			err = s.PurgeUser(t.Context(), userID)
			require.NoError(t, err)

			_, err = s.Balance(t.Context(), userID)
			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)

			_, err = storage.Profile().GetProfileByMobile(t.Context(), "9990001122")
			require.ErrorIs(t, err, apperrors.ErrMobileNotRegistered)

			records, err := storage.Transaction().ListAccountTransactions(t.Context(), account.ID)
			require.NoError(t, err)
			require.Empty(t, records)
		})
	})
}

// Two transfers racing for a balance that only covers one of them:
// exactly one must win, the account never overdraws.
func TestTransferConcurrentBalance(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	s := NewService(storage, nil, nil)

	sender, err := s.RegisterAccount(t.Context(), uuid.New())
	require.NoError(t, err)
	_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(50))
	require.NoError(t, err)

	receivers := make([]models.Account, 2)
	for i := range receivers {
		receivers[i], err = s.RegisterAccount(t.Context(), uuid.New())
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range receivers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Transfer(t.Context(), sender.UserID, receivers[i].ID, decimal.NewFromInt(50))
		}()
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)
			insufficient++
		}
	}

	require.Equal(t, 1, successes, "exactly one transfer may win the balance")
	require.Equal(t, 1, insufficient)

	senderAfter, err := s.Balance(t.Context(), sender.UserID)
	require.NoError(t, err)
	require.True(t, senderAfter.Balance.IsZero(), "sender must end at zero, never below")
}

// N transfers racing against the daily cap: exactly floor(limit/amount)
// may commit even though each passes the advisory check on entry.
func TestTransferConcurrentLimit(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	const workers = 10
	limit := decimal.NewFromInt(100)
	amount := decimal.NewFromInt(30) // floor(100/30) = 3 may pass

	storage := postgres.NewStorage(pg.Pool)
	s := NewService(storage, limits.New(limit, time.UTC), nil)

	sender, err := s.RegisterAccount(t.Context(), uuid.New())
	require.NoError(t, err)
	_, err = s.TopUp(t.Context(), sender.UserID, decimal.NewFromInt(10000))
	require.NoError(t, err)

	receiver, err := s.RegisterAccount(t.Context(), uuid.New())
	require.NoError(t, err)

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Transfer(t.Context(), sender.UserID, receiver.ID, amount)
		}()
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, apperrors.ErrLimitExceeded)
		}
	}

	require.Equal(t, 3, successes, "successes over the cap must be impossible")

	spent, err := s.DailySpend(t.Context(), sender.UserID)
	require.NoError(t, err)
	require.True(t, spent.Equal(decimal.NewFromInt(90)), "committed spend should be 3 * 30")

	// transfers are zero sum: total funds equal the single top-up
	senderAfter, err := s.Balance(t.Context(), sender.UserID)
	require.NoError(t, err)
	receiverAfter, err := s.Balance(t.Context(), receiver.UserID)
	require.NoError(t, err)
	require.True(t, senderAfter.Balance.Add(receiverAfter.Balance).Equal(decimal.NewFromInt(10000)))
}
