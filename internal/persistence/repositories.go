package persistence

import (
	"context"
	"time"
)

// SessionRecordRepository stores telehealth session records.
//
// GetOrCreate creates a record only when both provider and patient ids are
// present; the boolean reports whether this call created it. Concurrent
// callers for the same appointment observe a single record.
type SessionRecordRepository interface {
	GetByAppointment(ctx context.Context, appointmentID, providerID string) (*SessionRecord, error)
	GetOrCreate(ctx context.Context, seed SessionSeed) (*SessionRecord, bool, error)
	MarkStarted(ctx context.Context, appointmentID string, role Role, at time.Time) error
	MarkHeartbeat(ctx context.Context, appointmentID string, role Role, at time.Time) error
	UpdateEncounter(ctx context.Context, appointmentID, encounterID string) error
}

// AppointmentRepository reads appointments and updates their status.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appt Appointment) error
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, status string, at time.Time) error
}

// UserRepository reads staff accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByUsername(ctx context.Context, username string) (User, error)
}

// PatientRepository reads patient demographics.
type PatientRepository interface {
	CreatePatient(ctx context.Context, patient Patient) error
	GetPatient(ctx context.Context, id string) (Patient, error)
}

// EncounterRepository lists and creates encounters. CreateEncounter returns
// the patient's existing encounter instead when one already claims the Day.
type EncounterRepository interface {
	ListEncountersForPatient(ctx context.Context, patientID string) ([]Encounter, error)
	CreateEncounter(ctx context.Context, encounter Encounter) (Encounter, error)
}

// ProviderContextRepository persists the chart each staff user has open.
type ProviderContextRepository interface {
	SetActivePatient(ctx context.Context, username, patientID string, at time.Time) error
	SetActiveEncounter(ctx context.Context, username, encounterID string, at time.Time) error
	GetProviderContext(ctx context.Context, username string) (ProviderContext, error)
}
