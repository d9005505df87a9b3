package apperrors

import (
	"errors"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrReceiverNotFound = errors.New("receiver account not found")

	ErrMobileNotRegistered     = errors.New("mobile number not registered")
	ErrMobileAlreadyRegistered = errors.New("mobile number already registered")

	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrSelfTransfer        = errors.New("can't transfer to yourself")
	ErrLimitExceeded       = errors.New("daily transfer limit exceeded")
	ErrBalanceInsufficient = errors.New("insufficient balance")

	// ErrConcurrencyConflict is retryable: the storage gave up waiting for
	// a lock or the transaction lost a serialization race. Nothing committed.
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry")
)
