package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/osemenov/walletd/internal/apperrors"
	"github.com/osemenov/walletd/internal/models"
)

type ProfileRepo struct {
	DB DBTX
}

const createProfile = `-- name: CreateProfile
INSERT INTO profiles (id, user_id, mobile)
VALUES ($1, $2, $3)
RETURNING id, user_id, mobile
`

func (r *ProfileRepo) CreateProfile(ctx context.Context, userID uuid.UUID, mobile string) (models.Profile, error) {
	rows, _ := r.DB.Query(ctx, createProfile, uuid.New(), userID, mobile)
	p, err := pgx.CollectOneRow(rows, rowToProfile)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return p, apperrors.ErrMobileAlreadyRegistered
		}

		return p, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

const getProfileByMobile = `-- name: GetProfileByMobile
SELECT id, user_id, mobile FROM profiles
WHERE mobile = $1
`

func (r *ProfileRepo) GetProfileByMobile(ctx context.Context, mobile string) (models.Profile, error) {
	rows, _ := r.DB.Query(ctx, getProfileByMobile, mobile)
	return collectProfile(rows)
}

const getProfileByUser = `-- name: GetProfileByUser
SELECT id, user_id, mobile FROM profiles
WHERE user_id = $1
`

func (r *ProfileRepo) GetProfileByUser(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	rows, _ := r.DB.Query(ctx, getProfileByUser, userID)
	return collectProfile(rows)
}

const deleteProfile = `-- name: DeleteProfile
DELETE FROM profiles
WHERE user_id = $1
`

func (r *ProfileRepo) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteProfile, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func collectProfile(rows pgx.Rows) (models.Profile, error) {
	p, err := pgx.CollectOneRow(rows, rowToProfile)

	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, pgx.ErrNoRows):
		return p, apperrors.ErrMobileNotRegistered
	default:
		return p, fmt.Errorf("db error: %w", err)
	}
}

func rowToProfile(row pgx.CollectableRow) (models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Mobile)
	return p, err
}
