package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
	"github.com/example/telehealth-gateway/internal/persistence/sqlite"
	"github.com/example/telehealth-gateway/internal/persistence/sqlite/migration"
)

// SQLiteHarness is a migrated store in a temporary file, driven by a test
// clock and deterministic identifiers.
type SQLiteHarness struct {
	Store *sqlite.Store
	Clock *Clock
	IDs   *IDGenerator

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a store under tb.TempDir. Close is
// registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "telehealth.db")
	clock := NewClock(time.Time{})
	ids := NewIDGenerator("session")

	store, err := sqlite.Open(migration.TestSQLiteConfig(path), sqlite.Options{
		Timeout: 2 * time.Second,
		NewID:   ids.Next,
		Now:     clock.Now,
	})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background(), nil); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		Clock: clock,
		IDs:   ids,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Visit is a seeded appointment with its provider and patient.
type Visit struct {
	Appointment persistence.Appointment
	Provider    persistence.User
	Patient     persistence.Patient
}

// SeedVisit stores a provider, a patient and an appointment between them.
// Options apply to the appointment after the participants are filled in.
func (h *SQLiteHarness) SeedVisit(tb testing.TB, opts ...AppointmentOption) Visit {
	tb.Helper()
	ctx := context.Background()

	provider := NewUser()
	patient := NewPatient()
	appt := NewAppointment(append([]AppointmentOption{WithParticipants(provider.ID, patient.ID)}, opts...)...)

	if err := h.Store.Users.CreateUser(ctx, provider); err != nil {
		tb.Fatalf("failed to seed user: %v", err)
	}
	if err := h.Store.Patients.CreatePatient(ctx, patient); err != nil {
		tb.Fatalf("failed to seed patient: %v", err)
	}
	if err := h.Store.Appointments.CreateAppointment(ctx, appt); err != nil {
		tb.Fatalf("failed to seed appointment: %v", err)
	}
	return Visit{Appointment: appt, Provider: provider, Patient: patient}
}
