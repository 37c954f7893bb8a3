package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

const organizationColumns = `id, name, COALESCE(billing_email, ''), account_status, trial_ends_at,
	grace_period_ends_at, archived_at, COALESCE(read_only_reason, ''), credit_spending_enabled,
	is_comped, is_active, created_at, updated_at`

type organizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) ListTrialsEndedBefore(ctx context.Context, before time.Time) ([]domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations
	          WHERE account_status = $1 AND trial_ends_at < $2`
	return r.list(ctx, query, domain.AccountStatusTrial, before)
}

func (r *organizationRepository) ListGraceEndedBefore(ctx context.Context, status domain.AccountStatus, before time.Time) ([]domain.Organization, error) {
	if !status.IsGraceBearing() {
		return nil, fmt.Errorf("status %q has no grace period", status)
	}
	query := `SELECT ` + organizationColumns + ` FROM organizations
	          WHERE account_status = $1 AND grace_period_ends_at < $2`
	return r.list(ctx, query, status, before)
}

func (r *organizationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Organization, error) {
	logger.DatabaseCall("SELECT", "organizations", "args", args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.BillingEmail, &o.AccountStatus, &o.TrialEndsAt,
			&o.GracePeriodEndsAt, &o.ArchivedAt, &o.ReadOnlyReason, &o.CreditSpendingEnabled,
			&o.IsComped, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if !o.AccountStatus.Valid() {
			logger.Warn("Skipping organization with unknown account status", "org_id", o.ID, "status", o.AccountStatus)
			continue
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.DatabaseResult("SELECT", int64(len(orgs)), nil)
	return orgs, nil
}

func (r *organizationRepository) TryTransition(ctx context.Context, id uuid.UUID, from, to domain.AccountStatus, patch domain.OrganizationPatch) (int64, error) {
	logger.EnterMethod("organizationRepository.TryTransition", "orgID", id, "from", from, "to", to)

	sets := []string{"account_status = $1", "updated_at = $2"}
	args := []any{to, time.Now()}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.GracePeriodEndsAt != nil {
		set("grace_period_ends_at", *patch.GracePeriodEndsAt)
	}
	if patch.ArchivedAt != nil {
		set("archived_at", *patch.ArchivedAt)
	}
	if patch.ReadOnlyReason != nil {
		set("read_only_reason", *patch.ReadOnlyReason)
	}
	if patch.CreditSpendingEnabled != nil {
		set("credit_spending_enabled", *patch.CreditSpendingEnabled)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	args = append(args, id, from)

	// The status predicate is what keeps a concurrent billing webhook's write intact.
	query := fmt.Sprintf(`UPDATE organizations SET %s WHERE id = $%d AND account_status = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	logger.DatabaseCall("UPDATE", "organizations", "orgID", id)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "orgID", id)
		logger.ExitMethodWithError("organizationRepository.TryTransition", err, "orgID", id)
		return 0, err
	}
	affected, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", affected, err, "orgID", id)
	if err != nil {
		logger.ExitMethodWithError("organizationRepository.TryTransition", err, "orgID", id)
		return 0, err
	}

	logger.ExitMethod("organizationRepository.TryTransition", "orgID", id, "rowsAffected", affected)
	return affected, nil
}
