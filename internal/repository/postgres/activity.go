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

type activityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) repository.ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, a *domain.CrmActivity) error {
	column, err := profileColumn(a.Profile.Type)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query := `INSERT INTO crm_activities
	            (id, organization_id, ` + column + `, activity_type, title, description, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	logger.DatabaseCall("INSERT", "crm_activities", "profileID", a.Profile.ID, "type", a.ActivityType)
	_, err = r.db.ExecContext(ctx, query, a.ID, a.OrganizationID, a.Profile.ID, a.ActivityType,
		a.Title, a.Description, metadata, a.CreatedAt)
	logger.DatabaseResult("INSERT", 1, err, "activityID", a.ID)
	return err
}
