package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/repository"
)

type sequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailSequence, error) {
	s := &domain.EmailSequence{}
	query := `SELECT id, organization_id, COALESCE(name, ''), profile_type, trigger_stage, is_active
	          FROM email_sequences WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.OrganizationID, &s.Name, &s.ProfileType, &s.TriggerStage, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSequenceNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sequenceRepository) ListActiveByTrigger(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error) {
	query := `SELECT id, organization_id, COALESCE(name, ''), profile_type, trigger_stage, is_active
	          FROM email_sequences
	          WHERE organization_id = $1 AND profile_type = $2 AND trigger_stage = $3 AND is_active = TRUE
	          ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, orgID, profileType, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sequences []domain.EmailSequence
	for rows.Next() {
		var s domain.EmailSequence
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.ProfileType, &s.TriggerStage, &s.IsActive); err != nil {
			return nil, err
		}
		sequences = append(sequences, s)
	}
	return sequences, rows.Err()
}

func (r *sequenceRepository) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]domain.EmailSequenceStep, error) {
	query := `SELECT id, sequence_id, step_number, template_key, delay_hours
	          FROM email_sequence_steps
	          WHERE sequence_id = $1
	          ORDER BY step_number ASC`
	rows, err := r.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.EmailSequenceStep
	for rows.Next() {
		var s domain.EmailSequenceStep
		if err := rows.Scan(&s.ID, &s.SequenceID, &s.StepNumber, &s.TemplateKey, &s.DelayHours); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
