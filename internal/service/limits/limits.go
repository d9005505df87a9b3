// Package limits enforces the per-user daily transfer cap.
package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/repository"
)

// DefaultDailyLimit is the cap on the total amount a user may send
// with successful transfers within one calendar day.
var DefaultDailyLimit = decimal.NewFromInt(100000)

type Policy struct {
	limit decimal.Decimal
	loc   *time.Location
}

// New returns a limit policy with the given cap and day-boundary zone.
// The zone must be fixed per deployment: the daily window is a calendar
// day in that zone, never in server-local time. Defaults to UTC.
func New(limit decimal.Decimal, loc *time.Location) *Policy {
	if loc == nil {
		loc = time.UTC
	}

	return &Policy{
		limit: limit,
		loc:   loc,
	}
}

func (p *Policy) Limit() decimal.Decimal {
	return p.limit
}

// DayBounds returns the half-open [from, to) window of the calendar
// day containing asOf in the policy's zone.
func (p *Policy) DayBounds(asOf time.Time) (time.Time, time.Time) {
	local := asOf.In(p.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	return from, from.AddDate(0, 0, 1)
}

// SpentToday sums the account's successful transfers in the day
// containing asOf. The repo is a parameter so the caller decides the
// transactional scope: during a transfer commit it must be the
// tx-bound repo, read while the sender row lock is held.
func (p *Policy) SpentToday(ctx context.Context, transactions repository.TransactionRepo, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	from, to := p.DayBounds(asOf)

	spent, err := transactions.SumTransferred(ctx, accountID, from, to)
	if err != nil {
		return spent, fmt.Errorf("can't sum transferred amount: %w", err)
	}

	return spent, nil
}

// Check returns apperrors.ErrLimitExceeded when spending proposed on
// top of today's total would break the cap.
func (p *Policy) Check(ctx context.Context, transactions repository.TransactionRepo, accountID uuid.UUID, proposed decimal.Decimal, asOf time.Time) error {
	spent, err := p.SpentToday(ctx, transactions, accountID, asOf)
	if err != nil {
		return err
	}

	if spent.Add(proposed).GreaterThan(p.limit) {
		return apperrors.ErrLimitExceeded
	}

	return nil
}
