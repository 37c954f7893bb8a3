package postgres

import (
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"realty-backend/internal/repository"
)

type Store struct {
	db *sql.DB
	repository.OrganizationRepository
	repository.BillingProfileRepository
	repository.LifecycleLogRepository
	repository.DunningEmailRepository
	repository.ProfileRepository
	repository.SequenceRepository
	repository.ProfileEmailQueueRepository
	repository.ActivityRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                          db,
		OrganizationRepository:      NewOrganizationRepository(db),
		BillingProfileRepository:    NewBillingProfileRepository(db),
		LifecycleLogRepository:      NewLifecycleLogRepository(db),
		DunningEmailRepository:      NewDunningEmailRepository(db),
		ProfileRepository:           NewProfileRepository(db),
		SequenceRepository:          NewSequenceRepository(db),
		ProfileEmailQueueRepository: NewProfileEmailQueueRepository(db),
		ActivityRepository:          NewActivityRepository(db),
	}
}

// marshalMetadata encodes a metadata map for a jsonb column. It is passed as a
// string because lib/pq sends []byte as bytea.
func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
