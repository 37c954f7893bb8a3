package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

type dunningEmailRepository struct {
	db *sql.DB
}

func NewDunningEmailRepository(db *sql.DB) repository.DunningEmailRepository {
	return &dunningEmailRepository{db: db}
}

func prepareDunningEmail(e *domain.DunningEmail) (string, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return marshalMetadata(e.Metadata)
}

func (r *dunningEmailRepository) Create(ctx context.Context, e *domain.DunningEmail) error {
	logger.EnterMethod("dunningEmailRepository.Create", "orgID", e.OrganizationID, "type", e.EmailType)

	metadata, err := prepareDunningEmail(e)
	if err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.Create", err, "reason", "failed to marshal metadata")
		return err
	}

	query := `INSERT INTO dunning_emails (id, organization_id, email_type, recipient_email, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	logger.DatabaseCall("INSERT", "dunning_emails", "orgID", e.OrganizationID)
	_, err = r.db.ExecContext(ctx, query, e.ID, e.OrganizationID, e.EmailType, e.RecipientEmail, metadata, e.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "emailID", e.ID)

	if err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.Create", err, "orgID", e.OrganizationID)
		return err
	}
	logger.ExitMethod("dunningEmailRepository.Create", "emailID", e.ID)
	return nil
}

func (r *dunningEmailRepository) CreateUnlessRecent(ctx context.Context, e *domain.DunningEmail, since time.Time) (bool, error) {
	logger.EnterMethod("dunningEmailRepository.CreateUnlessRecent", "orgID", e.OrganizationID, "type", e.EmailType, "since", since)

	metadata, err := prepareDunningEmail(e)
	if err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.CreateUnlessRecent", err, "reason", "failed to marshal metadata")
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.CreateUnlessRecent", err, "reason", "begin transaction")
		return false, err
	}
	defer tx.Rollback()

	// NOT EXISTS alone does not serialize concurrent inserts under READ COMMITTED,
	// so writers for the same organization and type queue on an advisory lock.
	lockKey := e.OrganizationID.String() + ":" + string(e.EmailType)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.CreateUnlessRecent", err, "reason", "advisory lock")
		return false, err
	}

	query := `INSERT INTO dunning_emails (id, organization_id, email_type, recipient_email, metadata, created_at)
	          SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::jsonb, $6::timestamptz
	          WHERE NOT EXISTS (
	              SELECT 1 FROM dunning_emails
	              WHERE organization_id = $2::uuid AND email_type = $3::text AND created_at > $7::timestamptz
	          )`
	logger.DatabaseCall("INSERT", "dunning_emails", "orgID", e.OrganizationID)
	result, err := tx.ExecContext(ctx, query, e.ID, e.OrganizationID, e.EmailType, e.RecipientEmail, metadata, e.CreatedAt, since)
	if err != nil {
		logger.DatabaseResult("INSERT", 0, err)
		logger.ExitMethodWithError("dunningEmailRepository.CreateUnlessRecent", err, "orgID", e.OrganizationID)
		return false, err
	}
	affected, err := result.RowsAffected()
	logger.DatabaseResult("INSERT", affected, err)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("dunningEmailRepository.CreateUnlessRecent", err, "reason", "commit")
		return false, err
	}

	logger.ExitMethod("dunningEmailRepository.CreateUnlessRecent", "inserted", affected == 1)
	return affected == 1, nil
}

func (r *dunningEmailRepository) ListUnsent(ctx context.Context, limit, maxAttempts int) ([]domain.DunningEmail, error) {
	query := `SELECT id, organization_id, email_type, recipient_email, metadata, created_at,
	                 COALESCE(last_error, ''), attempts
	          FROM dunning_emails
	          WHERE sent_at IS NULL AND attempts < $2
	          ORDER BY attempts ASC, created_at ASC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []domain.DunningEmail
	for rows.Next() {
		var e domain.DunningEmail
		var raw []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EmailType, &e.RecipientEmail, &raw, &e.CreatedAt,
			&e.LastError, &e.Attempts); err != nil {
			return nil, err
		}
		if e.Metadata, err = unmarshalMetadata(raw); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (r *dunningEmailRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `UPDATE dunning_emails SET sent_at = $1, last_error = NULL WHERE id = $2 AND sent_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, sentAt, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("dunning email %s not found or already sent", id)
	}
	return nil
}

func (r *dunningEmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE dunning_emails SET last_error = $1, attempts = attempts + 1 WHERE id = $2 AND sent_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, reason, id)
	return err
}
