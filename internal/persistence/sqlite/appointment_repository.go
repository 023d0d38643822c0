package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// AppointmentRepository implements persistence.AppointmentRepository.
type AppointmentRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewAppointmentRepository creates a repository on pool.
func NewAppointmentRepository(pool *ConnectionPool, now func() time.Time) *AppointmentRepository {
	return &AppointmentRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    now,
	}
}

// CreateAppointment stores an appointment.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, appt persistence.Appointment) error {
	if strings.TrimSpace(appt.ID) == "" {
		return persistence.ErrConstraintViolation
	}
	status := strings.TrimSpace(appt.Status)
	if status == "" {
		status = "-"
	}
	updated := appt.UpdatedAt
	if updated.IsZero() {
		updated = r.now()
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, event_date, start_time, status,
			facility_id, category_id, billing_location_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(appt.ID),
		strings.TrimSpace(appt.PatientID),
		strings.TrimSpace(appt.ProviderID),
		strings.TrimSpace(appt.EventDate),
		strings.TrimSpace(appt.StartTime),
		status,
		strings.TrimSpace(appt.FacilityID),
		strings.TrimSpace(appt.CategoryID),
		strings.TrimSpace(appt.BillingLocationID),
		formatTime(updated),
	)
	return r.mapper.MapError(err)
}

// GetAppointment returns the appointment with id.
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}

	var (
		appt      persistence.Appointment
		updatedAt string
	)
	err := r.helper.QueryRow(ctx, `
		SELECT id, patient_id, provider_id, event_date, start_time, status,
			facility_id, category_id, billing_location_id, updated_at
		FROM appointments WHERE id = ?`,
		[]any{id},
		&appt.ID, &appt.PatientID, &appt.ProviderID, &appt.EventDate, &appt.StartTime, &appt.Status,
		&appt.FacilityID, &appt.CategoryID, &appt.BillingLocationID, &updatedAt,
	)
	if err != nil {
		return persistence.Appointment{}, r.mapper.MapError(err)
	}
	if appt.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Appointment{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return appt, nil
}

// UpdateAppointmentStatus sets the status code of an appointment.
func (r *AppointmentRepository) UpdateAppointmentStatus(ctx context.Context, id, status string, at time.Time) error {
	id = strings.TrimSpace(id)
	status = strings.TrimSpace(status)
	if id == "" {
		return persistence.ErrNotFound
	}
	if status == "" {
		return persistence.ErrConstraintViolation
	}

	var affected int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`, status, formatTime(at), id)
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
