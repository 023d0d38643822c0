package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// ProviderContextRepository implements persistence.ProviderContextRepository.
type ProviderContextRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewProviderContextRepository creates a repository on pool.
func NewProviderContextRepository(pool *ConnectionPool) *ProviderContextRepository {
	return &ProviderContextRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// SetActivePatient opens patientID's chart for username and clears any
// encounter that belonged to a different patient.
func (r *ProviderContextRepository) SetActivePatient(ctx context.Context, username, patientID string, at time.Time) error {
	username = strings.TrimSpace(username)
	patientID = strings.TrimSpace(patientID)
	if username == "" || patientID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.upsert(ctx, `
		INSERT INTO provider_context (username, patient_id, encounter_id, updated_at)
		VALUES (?, ?, '', ?)
		ON CONFLICT (username) DO UPDATE SET
			encounter_id = CASE WHEN provider_context.patient_id = excluded.patient_id
				THEN provider_context.encounter_id ELSE '' END,
			patient_id = excluded.patient_id,
			updated_at = excluded.updated_at`,
		username, patientID, formatTime(at),
	)
}

// SetActiveEncounter selects encounterID for username.
func (r *ProviderContextRepository) SetActiveEncounter(ctx context.Context, username, encounterID string, at time.Time) error {
	username = strings.TrimSpace(username)
	encounterID = strings.TrimSpace(encounterID)
	if username == "" || encounterID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.upsert(ctx, `
		INSERT INTO provider_context (username, patient_id, encounter_id, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			encounter_id = excluded.encounter_id,
			updated_at = excluded.updated_at`,
		username, encounterID, formatTime(at),
	)
}

// GetProviderContext returns the chart username has open.
func (r *ProviderContextRepository) GetProviderContext(ctx context.Context, username string) (persistence.ProviderContext, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return persistence.ProviderContext{}, persistence.ErrNotFound
	}

	var (
		pc        persistence.ProviderContext
		updatedAt string
	)
	err := r.helper.QueryRow(ctx,
		`SELECT username, patient_id, encounter_id, updated_at FROM provider_context WHERE username = ?`,
		[]any{username},
		&pc.Username, &pc.PatientID, &pc.EncounterID, &updatedAt,
	)
	if err != nil {
		return persistence.ProviderContext{}, r.mapper.MapError(err)
	}
	if pc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ProviderContext{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return pc, nil
}

func (r *ProviderContextRepository) upsert(ctx context.Context, stmt string, args ...any) error {
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, stmt, args...)
		return err
	})
	return r.mapper.MapError(err)
}
