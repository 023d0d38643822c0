package persistence

import "time"

// Role names the side of a session a caller is on.
type Role string

const (
	RoleProvider Role = "provider"
	RolePatient  Role = "patient"
)

// Valid reports whether r is one of the two session roles.
func (r Role) Valid() bool {
	return r == RoleProvider || r == RolePatient
}

// SessionRecord tracks one telehealth session per appointment.
type SessionRecord struct {
	ID                 string
	AppointmentID      string
	ProviderID         string
	PatientID          string
	EncounterID        *string
	CreatedAt          time.Time
	ProviderStartTime  *time.Time
	PatientStartTime   *time.Time
	ProviderLastUpdate *time.Time
	PatientLastUpdate  *time.Time
}

// SessionSeed carries what is needed to create a record on first launch.
type SessionSeed struct {
	AppointmentID string
	ProviderID    string
	PatientID     string
	EncounterID   *string
}

// Appointment is a scheduled visit between a provider and a patient.
// EventDate and StartTime keep the calendar's own text form.
type Appointment struct {
	ID                string
	PatientID         string
	ProviderID        string
	EventDate         string
	StartTime         string
	Status            string
	FacilityID        string
	CategoryID        string
	BillingLocationID string
	UpdatedAt         time.Time
}

// User is a staff account able to act as a provider.
type User struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Email     string
}

// Patient is the demographic subset needed to label a participant.
type Patient struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Encounter is a clinical visit record a telehealth session documents into.
type Encounter struct {
	ID                string
	PatientID         string
	ProviderID        string
	Date              time.Time
	// Day is the calendar day (YYYY-MM-DD) the encounter documents. At most
	// one encounter per patient carries a given Day.
	Day               string
	Reason            string
	FacilityID        string
	CategoryID        string
	BillingFacilityID string
	Sensitivity       string
	CreatedAt         time.Time
}

// ProviderContext is the chart a staff user currently has open.
type ProviderContext struct {
	Username    string
	PatientID   string
	EncounterID string
	UpdatedAt   time.Time
}
