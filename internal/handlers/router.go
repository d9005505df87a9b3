package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/handlers/middleware"
	"github.com/osemenov/walletd/internal/logger"
	"github.com/osemenov/walletd/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	ws walletService,
	metricsHandler http.Handler,
	logger logger.Logger,
) http.Handler {
	identityMiddleware := middleware.IdentityMiddleware()
	withUser := func(h http.Handler) http.Handler {
		return identityMiddleware(h)
	}

	apiwallet := http.NewServeMux()

	apiwallet.Handle("POST /register", withUser(handleRegister(ws, logger)))
	apiwallet.Handle("POST /topup", withUser(handleTopUp(ws, logger)))
	apiwallet.Handle("POST /transfer", withUser(handleTransfer(ws, logger)))
	apiwallet.Handle("POST /transfer/mobile", withUser(handleTransferByMobile(ws, logger)))
	apiwallet.Handle("GET /balance", withUser(handleBalance(ws, logger)))
	apiwallet.Handle("GET /transactions", withUser(handleHistory(ws, logger)))
	apiwallet.Handle("DELETE /account", withUser(handlePurge(ws, logger)))

	root := http.NewServeMux()
	root.Handle("/api/wallet/", http.StripPrefix("/api/wallet", apiwallet))

	if metricsHandler != nil {
		root.Handle("GET /metrics", metricsHandler)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type walletService interface {
	// Create account for the user, idempotent
	RegisterAccount(ctx context.Context, userID uuid.UUID) (models.Account, error)

	// Bind unique mobile number to the user
	// Has to return apperrors.ErrMobileAlreadyRegistered if taken
	RegisterMobile(ctx context.Context, userID uuid.UUID, mobile string) (models.Profile, error)

	// Credit the account, no limit check
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Transaction, error)

	// Atomic transfers, receiver by account id or registered mobile
	Transfer(ctx context.Context, senderID uuid.UUID, receiverAccountID uuid.UUID, amount decimal.Decimal) (models.Transaction, error)
	TransferByMobile(ctx context.Context, senderID uuid.UUID, mobile string, amount decimal.Decimal) (models.Transaction, error)

	Balance(ctx context.Context, userID uuid.UUID) (models.Account, error)
	DailySpend(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	DailyLimit() decimal.Decimal
	History(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)

	PurgeUser(ctx context.Context, userID uuid.UUID) error
}
