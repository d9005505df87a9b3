// Package resolver maps external account references (account id or
// registered mobile number) to accounts. Pure lookup, no mutation.
package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/osemenov/walletd/internal/models"
	"github.com/osemenov/walletd/internal/repository"
)

type Resolver struct {
	storage repository.Storage
}

func New(storage repository.Storage) *Resolver {
	return &Resolver{storage: storage}
}

// ByAccountID returns the account with the given id.
// Misses surface as apperrors.ErrAccountNotFound.
func (r *Resolver) ByAccountID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return r.storage.Account().GetAccountByID(ctx, id)
}

// ByMobile returns the account of the user the mobile number is
// registered to. Unknown numbers surface as
// apperrors.ErrMobileNotRegistered.
func (r *Resolver) ByMobile(ctx context.Context, mobile string) (models.Account, error) {
	profile, err := r.storage.Profile().GetProfileByMobile(ctx, mobile)
	if err != nil {
		return models.Account{}, err
	}

	account, err := r.storage.Account().GetAccount(ctx, profile.UserID)
	if err != nil {
		return account, fmt.Errorf("profile %s has no account: %w", profile.ID, err)
	}

	return account, nil
}
