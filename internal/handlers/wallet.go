package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/handlers/render"
	"github.com/osemenov/walletd/internal/handlers/userctx"
	"github.com/osemenov/walletd/internal/logger"
	"github.com/osemenov/walletd/internal/models"
)

func handleRegister(ws walletService, l logger.Logger) http.Handler {
	type request struct {
		Mobile string `json:"mobile" validate:"omitempty,len=10,numeric"`
	}

	type response struct {
		AccountID string    `json:"account_id"`
		Balance   float64   `json:"balance"`
		Mobile    string    `json:"mobile,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := ws.RegisterAccount(r.Context(), userID)
		if err != nil {
			l.Error("Failed to register account", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := response{
			AccountID: account.ID.String(),
			CreatedAt: account.CreatedAt,
		}
		resp.Balance, _ = account.Balance.Float64()

		if req.Mobile != "" {
			profile, err := ws.RegisterMobile(r.Context(), userID, req.Mobile)

			switch {
			case err == nil:
				resp.Mobile = profile.Mobile
			case errors.Is(err, apperrors.ErrMobileAlreadyRegistered):
				render.ServiceError(w, "Mobile number already registered", http.StatusConflict)
				return
			default:
				l.Error("Failed to register mobile", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}

		render.JSON(w, resp)
	})
}

func handleTopUp(ws walletService, l logger.Logger) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		record, err := ws.TopUp(r.Context(), userID, req.Amount)

		switch {
		case err == nil:
			render.JSON(w, transactionToResponse(record))
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be greater than 0", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to top up", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleTransfer(ws walletService, l logger.Logger) http.Handler {
	type request struct {
		ReceiverID uuid.UUID       `json:"receiver_id" validate:"required"`
		Amount     decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		record, err := ws.Transfer(r.Context(), userID, req.ReceiverID, req.Amount)
		renderTransferResult(w, l, record, err)
	})
}

func handleTransferByMobile(ws walletService, l logger.Logger) http.Handler {
	type request struct {
		Mobile string          `json:"mobile" validate:"required,len=10,numeric"`
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		record, err := ws.TransferByMobile(r.Context(), userID, req.Mobile, req.Amount)
		renderTransferResult(w, l, record, err)
	})
}

// Each transfer failure reason maps to its own status and message, the
// caller always learns why nothing moved.
func renderTransferResult(w http.ResponseWriter, l logger.Logger, record models.Transaction, err error) {
	switch {
	case err == nil:
		render.JSON(w, transactionToResponse(record))
	case errors.Is(err, apperrors.ErrInvalidAmount):
		render.ServiceError(w, "Amount must be greater than 0", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrReceiverNotFound):
		render.ServiceError(w, "Receiver account not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrMobileNotRegistered):
		render.ServiceError(w, "Mobile number not registered", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrSelfTransfer):
		render.ServiceError(w, "Can't transfer to yourself", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrLimitExceeded):
		render.ServiceError(w, "Daily transfer limit exceeded", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		render.ServiceError(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		render.ServiceError(w, "Conflicting concurrent update, retry", http.StatusConflict)
	default:
		l.Error("Failed to transfer", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleBalance(ws walletService, l logger.Logger) http.Handler {
	type response struct {
		Balance    float64 `json:"balance"`
		SpentToday float64 `json:"spent_today"`
		DailyLimit float64 `json:"daily_limit"`
		Headroom   float64 `json:"headroom"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		account, err := ws.Balance(r.Context(), userID)
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			render.ServiceError(w, "Account not found", http.StatusNotFound)
			return
		}

		var spent decimal.Decimal
		if err == nil {
			spent, err = ws.DailySpend(r.Context(), userID)
		}

		if err != nil {
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		limit := ws.DailyLimit()

		var resp response
		resp.Balance, _ = account.Balance.Float64()
		resp.SpentToday, _ = spent.Float64()
		resp.DailyLimit, _ = limit.Float64()
		resp.Headroom, _ = limit.Sub(spent).Float64()
		render.JSON(w, resp)
	})
}

func handleHistory(ws walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		records, err := ws.History(r.Context(), userID)

		switch {
		case err == nil:
			history := make([]transactionResponse, 0, len(records))
			for _, record := range records {
				history = append(history, transactionToResponse(record))
			}
			render.JSON(w, history)
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to list history", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handlePurge(ws walletService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		if err := ws.PurgeUser(r.Context(), userID); err != nil {
			l.Error("Failed to purge user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

type transactionResponse struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	SenderID   *uuid.UUID `json:"sender_id"`
	ReceiverID *uuid.UUID `json:"receiver_id"`
	Amount     float64    `json:"amount"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
}

func transactionToResponse(t models.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:         t.ID.String(),
		CreatedAt:  t.CreatedAt,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Kind:       t.Kind,
		Status:     t.Status,
	}
	resp.Amount, _ = t.Amount.Float64()
	return resp
}
