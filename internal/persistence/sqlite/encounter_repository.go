package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// EncounterRepository implements persistence.EncounterRepository.
type EncounterRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	newID  func() string
	now    func() time.Time
}

// NewEncounterRepository creates a repository on pool.
func NewEncounterRepository(pool *ConnectionPool, newID func() string, now func() time.Time) *EncounterRepository {
	return &EncounterRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		newID:  newID,
		now:    now,
	}
}

const encounterColumns = `id, patient_id, provider_id, encounter_date, COALESCE(encounter_day, ''), reason,
	facility_id, category_id, billing_facility_id, sensitivity, created_at`

// ListEncountersForPatient returns the patient's encounters, newest first.
func (r *EncounterRepository) ListEncountersForPatient(ctx context.Context, patientID string) ([]persistence.Encounter, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	var encounters []persistence.Encounter
	err := r.helper.Query(ctx, `
		SELECT `+encounterColumns+`
		FROM encounters
		WHERE patient_id = ?
		ORDER BY encounter_date DESC, created_at DESC`,
		[]any{patientID},
		func(rows *sql.Rows) error {
			e, err := scanEncounter(rows)
			if err != nil {
				return err
			}
			encounters = append(encounters, e)
			return nil
		},
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return encounters, nil
}

// CreateEncounter stores a new encounter, assigning its id and creation time.
// With Day set the insert yields to an encounter the patient already has for
// that day, and the stored one is returned.
func (r *EncounterRepository) CreateEncounter(ctx context.Context, encounter persistence.Encounter) (persistence.Encounter, error) {
	encounter.PatientID = strings.TrimSpace(encounter.PatientID)
	encounter.Day = strings.TrimSpace(encounter.Day)
	if encounter.PatientID == "" || encounter.Date.IsZero() {
		return persistence.Encounter{}, persistence.ErrConstraintViolation
	}
	if encounter.ID == "" {
		encounter.ID = r.newID()
	}
	if encounter.Sensitivity == "" {
		encounter.Sensitivity = "normal"
	}
	encounter.CreatedAt = r.now()

	var day sql.NullString
	if encounter.Day != "" {
		day = sql.NullString{String: encounter.Day, Valid: true}
	}

	var inserted bool
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `
			INSERT INTO encounters (id, patient_id, provider_id, encounter_date, encounter_day, reason,
				facility_id, category_id, billing_facility_id, sensitivity, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (patient_id, encounter_day) DO NOTHING`,
			encounter.ID,
			encounter.PatientID,
			encounter.ProviderID,
			formatTime(encounter.Date),
			day,
			encounter.Reason,
			encounter.FacilityID,
			encounter.CategoryID,
			encounter.BillingFacilityID,
			encounter.Sensitivity,
			formatTime(encounter.CreatedAt),
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted = affected == 1
		return nil
	})
	if err != nil {
		return persistence.Encounter{}, r.mapper.MapError(err)
	}
	if inserted {
		return encounter, nil
	}

	var existing persistence.Encounter
	err = r.helper.Query(ctx, `SELECT `+encounterColumns+` FROM encounters WHERE patient_id = ? AND encounter_day = ?`,
		[]any{encounter.PatientID, encounter.Day},
		func(rows *sql.Rows) error {
			var err error
			existing, err = scanEncounter(rows)
			return err
		},
	)
	if err != nil {
		return persistence.Encounter{}, r.mapper.MapError(err)
	}
	if existing.ID == "" {
		return persistence.Encounter{}, fmt.Errorf("encounter for patient %s on %s vanished after insert", encounter.PatientID, encounter.Day)
	}
	return existing, nil
}

func scanEncounter(rows *sql.Rows) (persistence.Encounter, error) {
	var (
		e               persistence.Encounter
		date, createdAt string
	)
	if err := rows.Scan(&e.ID, &e.PatientID, &e.ProviderID, &date, &e.Day, &e.Reason, &e.FacilityID,
		&e.CategoryID, &e.BillingFacilityID, &e.Sensitivity, &createdAt); err != nil {
		return persistence.Encounter{}, err
	}
	var err error
	if e.Date, err = parseTime(date); err != nil {
		return persistence.Encounter{}, fmt.Errorf("failed to parse encounter_date: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Encounter{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return e, nil
}
