package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// SessionRecordRepository implements persistence.SessionRecordRepository.
type SessionRecordRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	newID  func() string
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionRecordRepository creates a repository on pool.
func NewSessionRecordRepository(pool *ConnectionPool, newID func() string, now func() time.Time, logger *slog.Logger) *SessionRecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRecordRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		newID:  newID,
		now:    now,
		logger: logger.With("repository", "telehealth_sessions"),
	}
}

const sessionColumns = `id, appointment_id, provider_id, patient_id, encounter_id, created_at,
	provider_start_time, patient_start_time, provider_last_update, patient_last_update`

// GetByAppointment returns the record for appointmentID, or nil when there is
// none. A non-empty providerID additionally restricts the match.
func (r *SessionRecordRepository) GetByAppointment(ctx context.Context, appointmentID, providerID string) (*persistence.SessionRecord, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM telehealth_sessions WHERE appointment_id = ?`
	args := []any{appointmentID}
	if providerID = strings.TrimSpace(providerID); providerID != "" {
		query += ` AND provider_id = ?`
		args = append(args, providerID)
	}

	record, err := r.scanOne(ctx, query, args)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetOrCreate returns the existing record or inserts one. Insertion needs both
// a provider and a patient id; without them the call only looks up and may
// return nil. The insert ignores conflicts on appointment_id so concurrent
// callers converge on the first row written.
func (r *SessionRecordRepository) GetOrCreate(ctx context.Context, seed persistence.SessionSeed) (*persistence.SessionRecord, bool, error) {
	appointmentID := strings.TrimSpace(seed.AppointmentID)
	if appointmentID == "" {
		return nil, false, persistence.ErrConstraintViolation
	}

	providerID := strings.TrimSpace(seed.ProviderID)
	patientID := strings.TrimSpace(seed.PatientID)
	if providerID == "" || patientID == "" {
		record, err := r.GetByAppointment(ctx, appointmentID, "")
		return record, false, err
	}

	var encounterID sql.NullString
	if seed.EncounterID != nil && strings.TrimSpace(*seed.EncounterID) != "" {
		encounterID = sql.NullString{String: strings.TrimSpace(*seed.EncounterID), Valid: true}
	}

	var created bool
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `
			INSERT INTO telehealth_sessions (id, appointment_id, provider_id, patient_id, encounter_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (appointment_id) DO NOTHING`,
			r.newID(), appointmentID, providerID, patientID, encounterID, formatTime(r.now()),
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		created = affected == 1
		return nil
	})
	if err != nil && !errors.Is(err, persistence.ErrDuplicate) {
		return nil, false, r.mapper.MapError(err)
	}

	record, err := r.GetByAppointment(ctx, appointmentID, "")
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, fmt.Errorf("session record for appointment %s vanished after insert", appointmentID)
	}
	return record, created, nil
}

// MarkStarted records when role launched the session.
func (r *SessionRecordRepository) MarkStarted(ctx context.Context, appointmentID string, role persistence.Role, at time.Time) error {
	return r.touch(ctx, role, "start_time", appointmentID, at)
}

// MarkHeartbeat records that role was present at at.
func (r *SessionRecordRepository) MarkHeartbeat(ctx context.Context, appointmentID string, role persistence.Role, at time.Time) error {
	return r.touch(ctx, role, "last_update", appointmentID, at)
}

// UpdateEncounter links the session to a clinical encounter.
func (r *SessionRecordRepository) UpdateEncounter(ctx context.Context, appointmentID, encounterID string) error {
	encounterID = strings.TrimSpace(encounterID)
	if encounterID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.update(ctx, `UPDATE telehealth_sessions SET encounter_id = ? WHERE appointment_id = ?`, encounterID, appointmentID)
}

// touch sets the role's timestamp column named by suffix. Both parts of the
// column name come from constants, never from input.
func (r *SessionRecordRepository) touch(ctx context.Context, role persistence.Role, suffix, appointmentID string, at time.Time) error {
	if !role.Valid() {
		return persistence.ErrInvalidRole
	}
	column := string(role) + "_" + suffix
	return r.update(ctx, `UPDATE telehealth_sessions SET `+column+` = ? WHERE appointment_id = ?`, formatTime(at), appointmentID)
}

func (r *SessionRecordRepository) update(ctx context.Context, stmt string, value any, appointmentID string) error {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return persistence.ErrNotFound
	}

	var affected int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, stmt, value, appointmentID)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *SessionRecordRepository) scanOne(ctx context.Context, query string, args []any) (*persistence.SessionRecord, error) {
	var (
		record        persistence.SessionRecord
		createdAt     string
		encounterID   sql.NullString
		providerStart sql.NullString
		patientStart  sql.NullString
		providerSeen  sql.NullString
		patientSeen   sql.NullString
	)

	err := r.helper.QueryRow(ctx, query, args,
		&record.ID,
		&record.AppointmentID,
		&record.ProviderID,
		&record.PatientID,
		&encounterID,
		&createdAt,
		&providerStart,
		&patientStart,
		&providerSeen,
		&patientSeen,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	if encounterID.Valid {
		value := encounterID.String
		record.EncounterID = &value
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.ProviderStartTime = r.optionalTime(ctx, &record, "provider_start_time", providerStart)
	record.PatientStartTime = r.optionalTime(ctx, &record, "patient_start_time", patientStart)
	record.ProviderLastUpdate = r.optionalTime(ctx, &record, "provider_last_update", providerSeen)
	record.PatientLastUpdate = r.optionalTime(ctx, &record, "patient_last_update", patientSeen)
	return &record, nil
}

// optionalTime reads a nullable timestamp column. An unreadable value counts
// as never set, so a damaged presence stamp reads as absent.
func (r *SessionRecordRepository) optionalTime(ctx context.Context, record *persistence.SessionRecord, column string, value sql.NullString) *time.Time {
	t, err := parseNullableTime(value)
	if err != nil {
		r.logger.WarnContext(ctx, "ignoring unreadable session timestamp",
			"appointment_id", record.AppointmentID,
			"column", column,
			"value", value.String,
			"error", err,
		)
		return nil
	}
	return t
}
