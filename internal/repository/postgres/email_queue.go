package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

type profileEmailQueueRepository struct {
	db *sql.DB
}

func NewProfileEmailQueueRepository(db *sql.DB) repository.ProfileEmailQueueRepository {
	return &profileEmailQueueRepository{db: db}
}

func statusStrings(statuses []domain.QueueStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *profileEmailQueueRepository) HasEnrollment(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (bool, error) {
	column, err := profileColumn(ref.Type)
	if err != nil {
		return false, err
	}
	query := `SELECT EXISTS (SELECT 1 FROM profile_email_queue WHERE ` + column + ` = $1 AND status = ANY($2))`
	var exists bool
	err = r.db.QueryRowContext(ctx, query, ref.ID, pq.Array(statusStrings(statuses))).Scan(&exists)
	return exists, err
}

func (r *profileEmailQueueRepository) Enroll(ctx context.Context, ref domain.ProfileRef, entries []domain.ProfileEmailQueueEntry) error {
	logger.EnterMethod("profileEmailQueueRepository.Enroll", "profileID", ref.ID, "profileType", ref.Type, "entries", len(entries))

	table, err := profileTable(ref.Type)
	if err != nil {
		return err
	}
	column, err := profileColumn(ref.Type)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return domain.ErrSequenceHasNoSteps
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", err, "reason", "begin transaction")
		return err
	}
	defer tx.Rollback()

	// Row lock on the profile serializes concurrent enrollments for it.
	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR UPDATE`, ref.ID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProfileNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", err, "reason", "lock profile")
		return err
	}

	var enrolled bool
	checkQuery := `SELECT EXISTS (SELECT 1 FROM profile_email_queue WHERE ` + column + ` = $1 AND status = ANY($2))`
	if err := tx.QueryRowContext(ctx, checkQuery, ref.ID, pq.Array(statusStrings(domain.EnrolledStatuses))).Scan(&enrolled); err != nil {
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", err, "reason", "check enrollment")
		return err
	}
	if enrolled {
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", domain.ErrAlreadyEnrolled, "profileID", ref.ID)
		return domain.ErrAlreadyEnrolled
	}

	values := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*8)
	for _, e := range entries {
		n := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8))
		args = append(args, e.ID, ref.ID, e.SequenceID, e.StepNumber, e.TemplateKey, e.ScheduledFor, e.Status, e.CreatedAt)
	}
	insertQuery := `INSERT INTO profile_email_queue
	                  (id, ` + column + `, sequence_id, step_number, template_key, scheduled_for, status, created_at)
	                VALUES ` + strings.Join(values, ", ")

	logger.DatabaseCall("INSERT", "profile_email_queue", "profileID", ref.ID, "rows", len(entries))
	result, err := tx.ExecContext(ctx, insertQuery, args...)
	if err != nil {
		logger.DatabaseResult("INSERT", 0, err)
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", err, "profileID", ref.ID)
		return err
	}
	affected, _ := result.RowsAffected()
	logger.DatabaseResult("INSERT", affected, nil)

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("profileEmailQueueRepository.Enroll", err, "reason", "commit")
		return err
	}

	logger.ExitMethod("profileEmailQueueRepository.Enroll", "profileID", ref.ID, "rows", affected)
	return nil
}

func (r *profileEmailQueueRepository) UpdateStatus(ctx context.Context, ref domain.ProfileRef, from, to domain.QueueStatus) (int64, error) {
	column, err := profileColumn(ref.Type)
	if err != nil {
		return 0, err
	}
	query := `UPDATE profile_email_queue SET status = $1 WHERE ` + column + ` = $2 AND status = $3`
	logger.DatabaseCall("UPDATE", "profile_email_queue", "profileID", ref.ID, "from", from, "to", to)
	result, err := r.db.ExecContext(ctx, query, to, ref.ID, from)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return 0, err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	return rows, err
}

func (r *profileEmailQueueRepository) DeleteByStatus(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (int64, error) {
	column, err := profileColumn(ref.Type)
	if err != nil {
		return 0, err
	}
	query := `DELETE FROM profile_email_queue WHERE ` + column + ` = $1 AND status = ANY($2)`
	logger.DatabaseCall("DELETE", "profile_email_queue", "profileID", ref.ID)
	result, err := r.db.ExecContext(ctx, query, ref.ID, pq.Array(statusStrings(statuses)))
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return 0, err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("DELETE", rows, err)
	return rows, err
}

func (r *profileEmailQueueRepository) Cancel(ctx context.Context, ref domain.ProfileRef, status domain.QueueStatus, reason string) ([]domain.ProfileEmailQueueEntry, error) {
	column, err := profileColumn(ref.Type)
	if err != nil {
		return nil, err
	}
	query := `UPDATE profile_email_queue
	          SET status = $1, cancelled_reason = $2
	          WHERE ` + column + ` = $3 AND status = $4
	          RETURNING id, sequence_id, step_number, COALESCE(template_key, ''), scheduled_for, created_at`
	logger.DatabaseCall("UPDATE", "profile_email_queue", "profileID", ref.ID, "status", status)
	rows, err := r.db.QueryContext(ctx, query, domain.QueueStatusCancelled, reason, ref.ID, status)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return nil, err
	}
	defer rows.Close()

	var cancelled []domain.ProfileEmailQueueEntry
	for rows.Next() {
		e := domain.ProfileEmailQueueEntry{
			Profile:         ref,
			Status:          domain.QueueStatusCancelled,
			CancelledReason: reason,
		}
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.StepNumber, &e.TemplateKey, &e.ScheduledFor, &e.CreatedAt); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("UPDATE", int64(len(cancelled)), nil)
	return cancelled, nil
}

func (r *profileEmailQueueRepository) ListByProfile(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error) {
	column, err := profileColumn(ref.Type)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, sequence_id, step_number, COALESCE(template_key, ''), scheduled_for, status,
	                 COALESCE(cancelled_reason, ''), sent_at, created_at
	          FROM profile_email_queue
	          WHERE ` + column + ` = $1
	          ORDER BY scheduled_for ASC, step_number ASC`
	rows, err := r.db.QueryContext(ctx, query, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ProfileEmailQueueEntry
	for rows.Next() {
		e := domain.ProfileEmailQueueEntry{Profile: ref}
		if err := rows.Scan(&e.ID, &e.SequenceID, &e.StepNumber, &e.TemplateKey, &e.ScheduledFor, &e.Status,
			&e.CancelledReason, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
