package application

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
)

var referenceNow = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

type clockStub struct {
	mu  sync.Mutex
	now time.Time
}

func newClockStub() *clockStub {
	return &clockStub{now: referenceNow}
}

func (c *clockStub) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clockStub) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sessionStoreStub struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*persistence.SessionRecord
	inserts int

	getErr       error
	heartbeatErr error
	updateEncErr error
}

func newSessionStoreStub(now func() time.Time) *sessionStoreStub {
	return &sessionStoreStub{now: now, records: make(map[string]*persistence.SessionRecord)}
}

func (s *sessionStoreStub) GetByAppointment(ctx context.Context, appointmentID, providerID string) (*persistence.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	record, ok := s.records[appointmentID]
	if !ok || (providerID != "" && record.ProviderID != providerID) {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (s *sessionStoreStub) GetOrCreate(ctx context.Context, seed persistence.SessionSeed) (*persistence.SessionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[seed.AppointmentID]; ok {
		copied := *record
		return &copied, false, nil
	}
	if seed.ProviderID == "" || seed.PatientID == "" {
		return nil, false, nil
	}
	s.inserts++
	record := &persistence.SessionRecord{
		ID:            "session-" + strconv.Itoa(s.inserts),
		AppointmentID: seed.AppointmentID,
		ProviderID:    seed.ProviderID,
		PatientID:     seed.PatientID,
		CreatedAt:     s.now(),
	}
	s.records[seed.AppointmentID] = record
	copied := *record
	return &copied, true, nil
}

func (s *sessionStoreStub) MarkStarted(ctx context.Context, appointmentID string, role persistence.Role, at time.Time) error {
	return s.mutate(appointmentID, role, func(r *persistence.SessionRecord) {
		if role == persistence.RoleProvider {
			r.ProviderStartTime = &at
		} else {
			r.PatientStartTime = &at
		}
	})
}

func (s *sessionStoreStub) MarkHeartbeat(ctx context.Context, appointmentID string, role persistence.Role, at time.Time) error {
	if s.heartbeatErr != nil {
		return s.heartbeatErr
	}
	return s.mutate(appointmentID, role, func(r *persistence.SessionRecord) {
		if role == persistence.RoleProvider {
			r.ProviderLastUpdate = &at
		} else {
			r.PatientLastUpdate = &at
		}
	})
}

func (s *sessionStoreStub) UpdateEncounter(ctx context.Context, appointmentID, encounterID string) error {
	if s.updateEncErr != nil {
		return s.updateEncErr
	}
	return s.mutate(appointmentID, persistence.RoleProvider, func(r *persistence.SessionRecord) {
		r.EncounterID = &encounterID
	})
}

func (s *sessionStoreStub) mutate(appointmentID string, role persistence.Role, fn func(*persistence.SessionRecord)) error {
	if !role.Valid() {
		return persistence.ErrInvalidRole
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appointmentID]
	if !ok {
		return persistence.ErrNotFound
	}
	fn(record)
	return nil
}

func (s *sessionStoreStub) record(appointmentID string) *persistence.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appointmentID]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (s *sessionStoreStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type appointmentRepoStub struct {
	appointments map[string]persistence.Appointment
	getErr       error
	updateErr    error
	updated      map[string]string
}

func newAppointmentRepoStub(appts ...persistence.Appointment) *appointmentRepoStub {
	stub := &appointmentRepoStub{appointments: make(map[string]persistence.Appointment), updated: make(map[string]string)}
	for _, appt := range appts {
		stub.appointments[appt.ID] = appt
	}
	return stub
}

func (r *appointmentRepoStub) CreateAppointment(ctx context.Context, appt persistence.Appointment) error {
	r.appointments[appt.ID] = appt
	return nil
}

func (r *appointmentRepoStub) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	if r.getErr != nil {
		return persistence.Appointment{}, r.getErr
	}
	appt, ok := r.appointments[id]
	if !ok {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	return appt, nil
}

func (r *appointmentRepoStub) UpdateAppointmentStatus(ctx context.Context, id, status string, at time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated[id] = status
	return nil
}

type encounterRepoStub struct {
	existing  []persistence.Encounter
	created   []persistence.Encounter
	listErr   error
	createErr error
}

func (r *encounterRepoStub) ListEncountersForPatient(ctx context.Context, patientID string) ([]persistence.Encounter, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Encounter
	for _, enc := range append(r.existing, r.created...) {
		if enc.PatientID == patientID {
			out = append(out, enc)
		}
	}
	return out, nil
}

func (r *encounterRepoStub) CreateEncounter(ctx context.Context, encounter persistence.Encounter) (persistence.Encounter, error) {
	if r.createErr != nil {
		return persistence.Encounter{}, r.createErr
	}
	encounter.ID = "enc-new-" + strconv.Itoa(len(r.created)+1)
	r.created = append(r.created, encounter)
	return encounter, nil
}

type userDirectoryStub map[string]persistence.User

func (d userDirectoryStub) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	user, ok := d[username]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

type patientDirectoryStub map[string]persistence.Patient

func (d patientDirectoryStub) GetPatient(ctx context.Context, id string) (persistence.Patient, error) {
	patient, ok := d[id]
	if !ok {
		return persistence.Patient{}, persistence.ErrNotFound
	}
	return patient, nil
}

type clinicalStub struct {
	patients   map[string]string
	encounters map[string]string
	err        error
}

func newClinicalStub() *clinicalStub {
	return &clinicalStub{patients: make(map[string]string), encounters: make(map[string]string)}
}

func (c *clinicalStub) SetActivePatient(ctx context.Context, username, patientID string, at time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.patients[username] = patientID
	return nil
}

func (c *clinicalStub) SetActiveEncounter(ctx context.Context, username, encounterID string, at time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.encounters[username] = encounterID
	return nil
}

type csrfStub struct {
	valid string
}

func (c csrfStub) VerifyCSRF(caller CallerIdentity, token string) bool {
	return token != "" && token == c.valid
}

var errStoreDown = errors.New("store unavailable")
