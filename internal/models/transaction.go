package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionKindTopUp    = "TOPUP"
	TransactionKindTransfer = "TRANSFER"

	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusFailed  = "FAILED"
)

// Transaction is a single append-only ledger record.
// TOPUP has the credited account in SenderID and no receiver.
// TRANSFER always has both sides set and SenderID != ReceiverID.
// Records are never updated once written.
type Transaction struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	SenderID   *uuid.UUID
	ReceiverID *uuid.UUID
	Amount     decimal.Decimal
	Kind       string
	Status     string
}

// Touches reports whether the record references the given account.
func (t Transaction) Touches(accountID uuid.UUID) bool {
	if t.SenderID != nil && *t.SenderID == accountID {
		return true
	}
	return t.ReceiverID != nil && *t.ReceiverID == accountID
}
