package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

var (
	appointmentCounter uint64
	userCounter        uint64
	patientCounter     uint64
)

// ---------------------------- Appointment fixtures ----------------------------

// AppointmentOption configures a generated appointment.
type AppointmentOption func(*persistence.Appointment)

// NewAppointment returns an appointment scheduled at ReferenceTime with
// unique ids. Without options it is joinable at ReferenceTime.
func NewAppointment(opts ...AppointmentOption) persistence.Appointment {
	idx := atomic.AddUint64(&appointmentCounter, 1)
	appt := persistence.Appointment{
		ID:                fmt.Sprintf("appt-%03d", idx),
		PatientID:         fmt.Sprintf("patient-%03d", idx),
		ProviderID:        fmt.Sprintf("provider-%03d", idx),
		Status:            "-",
		FacilityID:        "3",
		CategoryID:        "16",
		BillingLocationID: "3",
		UpdatedAt:         referenceTime,
	}
	WithSchedule(referenceTime)(&appt)
	for _, opt := range opts {
		opt(&appt)
	}
	return appt
}

// WithAppointmentID overrides the appointment id.
func WithAppointmentID(id string) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.ID = id
	}
}

// WithParticipants sets the provider user id and the patient id.
func WithParticipants(providerID, patientID string) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.ProviderID = providerID
		a.PatientID = patientID
	}
}

// WithSchedule sets the event date and start time from at, in at's location.
func WithSchedule(at time.Time) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.EventDate = at.Format(time.DateOnly)
		a.StartTime = at.Format(time.TimeOnly)
	}
}

// WithStatus overrides the status code.
func WithStatus(status string) AppointmentOption {
	return func(a *persistence.Appointment) {
		a.Status = status
	}
}

// ------------------------------- User fixtures --------------------------------

// UserOption configures a generated staff user.
type UserOption func(*persistence.User)

// NewUser returns a staff user with a unique id and username.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	user := persistence.User{
		ID:        fmt.Sprintf("provider-%03d", idx),
		Username:  fmt.Sprintf("dr%03d", idx),
		FirstName: "Provider",
		LastName:  fmt.Sprintf("%03d", idx),
		Email:     fmt.Sprintf("dr%03d@example.org", idx),
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the user id.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) {
		u.ID = id
	}
}

// WithUsername overrides the login name.
func WithUsername(username string) UserOption {
	return func(u *persistence.User) {
		u.Username = username
	}
}

// WithUserName overrides the first and last names.
func WithUserName(first, last string) UserOption {
	return func(u *persistence.User) {
		u.FirstName = first
		u.LastName = last
	}
}

// ------------------------------ Patient fixtures ------------------------------

// PatientOption configures a generated patient.
type PatientOption func(*persistence.Patient)

// NewPatient returns a patient with a unique id.
func NewPatient(opts ...PatientOption) persistence.Patient {
	idx := atomic.AddUint64(&patientCounter, 1)
	patient := persistence.Patient{
		ID:        fmt.Sprintf("patient-%03d", idx),
		FirstName: "Patient",
		LastName:  fmt.Sprintf("%03d", idx),
		Email:     fmt.Sprintf("patient%03d@example.org", idx),
	}
	for _, opt := range opts {
		opt(&patient)
	}
	return patient
}

// WithPatientID overrides the patient id.
func WithPatientID(id string) PatientOption {
	return func(p *persistence.Patient) {
		p.ID = id
	}
}

// WithPatientName overrides the names. Empty names exercise the display fallback.
func WithPatientName(first, last string) PatientOption {
	return func(p *persistence.Patient) {
		p.FirstName = first
		p.LastName = last
	}
}
