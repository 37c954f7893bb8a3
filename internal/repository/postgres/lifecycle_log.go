package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

type lifecycleLogRepository struct {
	db *sql.DB
}

func NewLifecycleLogRepository(db *sql.DB) repository.LifecycleLogRepository {
	return &lifecycleLogRepository{db: db}
}

func (r *lifecycleLogRepository) Create(ctx context.Context, entry *domain.AccountLifecycleLog) error {
	logger.EnterMethod("lifecycleLogRepository.Create", "orgID", entry.OrganizationID, "newStatus", entry.NewStatus)

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		logger.ExitMethodWithError("lifecycleLogRepository.Create", err, "reason", "failed to marshal metadata")
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `INSERT INTO account_lifecycle_log
	            (id, organization_id, previous_status, new_status, reason, triggered_by, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	logger.DatabaseCall("INSERT", "account_lifecycle_log", "orgID", entry.OrganizationID)
	_, err = r.db.ExecContext(ctx, query, entry.ID, entry.OrganizationID, entry.PreviousStatus, entry.NewStatus,
		entry.Reason, entry.TriggeredBy, metadata, entry.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "logID", entry.ID)

	if err != nil {
		logger.ExitMethodWithError("lifecycleLogRepository.Create", err, "orgID", entry.OrganizationID)
		return err
	}
	logger.ExitMethod("lifecycleLogRepository.Create", "logID", entry.ID)
	return nil
}
