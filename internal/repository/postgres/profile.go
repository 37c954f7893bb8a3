package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

const profileColumns = `id, organization_id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, ''),
	stage, COALESCE(source, ''), created_at, updated_at, last_contact_at`

// profileTable returns the table holding profiles of type t.
func profileTable(t domain.ProfileType) (string, error) {
	switch t {
	case domain.ProfileTypeBuyer:
		return "buyer_profiles", nil
	case domain.ProfileTypeSeller:
		return "seller_profiles", nil
	}
	return "", domain.ErrInvalidProfileType
}

// profileColumn returns the queue/activity foreign key column for profiles of type t.
func profileColumn(t domain.ProfileType) (string, error) {
	switch t {
	case domain.ProfileTypeBuyer:
		return "buyer_profile_id", nil
	case domain.ProfileTypeSeller:
		return "seller_profile_id", nil
	}
	return "", domain.ErrInvalidProfileType
}

type profileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func scanProfile(row *sql.Row, t domain.ProfileType) (*domain.Profile, error) {
	p := &domain.Profile{Type: t}
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Email, &p.Phone,
		&p.Stage, &p.Source, &p.CreatedAt, &p.UpdatedAt, &p.LastContactAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepository) GetByID(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error) {
	table, err := profileTable(ref.Type)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + profileColumns + ` FROM ` + table + ` WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, ref.ID), ref.Type)
}

func (r *profileRepository) FindByEmail(ctx context.Context, profileType domain.ProfileType, email string) (*domain.Profile, error) {
	table, err := profileTable(profileType)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + profileColumns + ` FROM ` + table + ` WHERE email = $1 ORDER BY created_at ASC LIMIT 1`
	logger.DatabaseCall("SELECT", table, "email", email)
	return scanProfile(r.db.QueryRowContext(ctx, query, email), profileType)
}

func (r *profileRepository) UpdateStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage, updatedAt time.Time) error {
	table, err := profileTable(ref.Type)
	if err != nil {
		return err
	}
	query := `UPDATE ` + table + ` SET stage = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, table, query, stage, updatedAt, ref.ID)
}

func (r *profileRepository) TouchLastContact(ctx context.Context, ref domain.ProfileRef, at time.Time) error {
	table, err := profileTable(ref.Type)
	if err != nil {
		return err
	}
	query := `UPDATE ` + table + ` SET last_contact_at = $1, updated_at = $1 WHERE id = $2`
	return r.execOne(ctx, table, query, at, ref.ID)
}

func (r *profileRepository) execOne(ctx context.Context, table, query string, args ...any) error {
	logger.DatabaseCall("UPDATE", table)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
