package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
	"github.com/example/telehealth-gateway/internal/scheduler"
	"github.com/example/telehealth-gateway/internal/token"
)

const maxStatusLength = 15

// UserDirectory resolves staff accounts.
type UserDirectory interface {
	GetUserByUsername(ctx context.Context, username string) (persistence.User, error)
}

// PatientDirectory resolves patient demographics.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id string) (persistence.Patient, error)
}

// ClinicalContext records the chart a staff user is working in.
type ClinicalContext interface {
	SetActivePatient(ctx context.Context, username, patientID string, at time.Time) error
	SetActiveEncounter(ctx context.Context, username, encounterID string, at time.Time) error
}

// TokenIssuer signs room credentials.
type TokenIssuer interface {
	Issue(grant token.Grant) (string, error)
}

// CSRFVerifier checks request forgery tokens for a caller.
type CSRFVerifier interface {
	VerifyCSRF(caller CallerIdentity, token string) bool
}

// Dependencies groups the collaborators of the coordinator. Tokens is nil
// when signed credentials are disabled. Clinical is optional.
type Dependencies struct {
	Sessions     persistence.SessionRecordRepository
	Appointments persistence.AppointmentRepository
	Encounters   persistence.EncounterRepository
	Users        UserDirectory
	Patients     PatientDirectory
	Clinical     ClinicalContext
	Tokens       TokenIssuer
	CSRF         CSRFVerifier
}

type actionHandler func(ctx context.Context, caller CallerIdentity, params Params) Result

// Coordinator authorizes room access and orchestrates the session lifecycle
// for every action.
type Coordinator struct {
	deps     Dependencies
	settings Settings
	now      func() time.Time
	logger   *slog.Logger
	handlers map[Action]actionHandler
}

// NewCoordinator constructs a coordinator with the provided dependencies.
func NewCoordinator(deps Dependencies, settings Settings, now func() time.Time) *Coordinator {
	return NewCoordinatorWithLogger(deps, settings, now, nil)
}

// NewCoordinatorWithLogger constructs a coordinator with a specified logger.
func NewCoordinatorWithLogger(deps Dependencies, settings Settings, now func() time.Time, logger *slog.Logger) *Coordinator {
	if now == nil {
		now = time.Now
	}
	c := &Coordinator{deps: deps, settings: settings, now: now, logger: defaultLogger(logger)}
	c.handlers = map[Action]actionHandler{
		ActionLaunchData: func(ctx context.Context, caller CallerIdentity, params Params) Result {
			data, err := c.LaunchData(ctx, caller, params.appointmentID())
			return respond(data, err)
		},
		ActionSetStatus: func(ctx context.Context, caller CallerIdentity, params Params) Result {
			ack, err := c.SetStatus(ctx, caller, params.appointmentID(), params.get("status"), params.get("csrf_token"))
			return respond(ack, err)
		},
		ActionSetEncounter: func(ctx context.Context, caller CallerIdentity, params Params) Result {
			ack, err := c.SetEncounter(ctx, caller, params.appointmentID())
			return respond(ack, err)
		},
		ActionHeartbeat: func(ctx context.Context, caller CallerIdentity, params Params) Result {
			ack, err := c.Heartbeat(ctx, caller, params.appointmentID())
			return respond(ack, err)
		},
		ActionPatientReadyCheck: func(ctx context.Context, caller CallerIdentity, params Params) Result {
			ready, err := c.PatientReadyCheck(ctx, caller, params.appointmentID())
			return respond(ready, err)
		},
		ActionSettings: func(context.Context, CallerIdentity, Params) Result {
			return Result{Status: StatusOK, Body: c.settings.View()}
		},
	}
	return c
}

func (c *Coordinator) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, c.logger, "RoomCoordinator", operation, attrs...)
}

// Settings returns the configuration the coordinator was built with.
func (c *Coordinator) Settings() Settings {
	return c.settings
}

// Dispatch runs the named action for caller on variant. Every failure is
// converted into a Result; Dispatch never returns an error.
func (c *Coordinator) Dispatch(ctx context.Context, variant Variant, caller CallerIdentity, name string, params Params) Result {
	action := ParseAction(name)
	if action == ActionUnrecognized || !variant.Allows(action) {
		c.loggerWith(ctx, "Dispatch", "action", name, "variant", variant.String()).
			WarnContext(ctx, "unrecognized action")
		return Result{Status: StatusNotFound, Body: ErrorBody{Error: fmt.Sprintf("%s: %s", ErrUnknownAction, name)}}
	}

	if action != ActionSettings {
		if !caller.authenticated() || caller.Kind != variant.callerKind() {
			c.loggerWith(ctx, "Dispatch", append(caller.logAttrs(), "action", action.String(), "variant", variant.String())...).
				WarnContext(ctx, "caller does not match endpoint")
			return failure(ErrAccessDenied)
		}
	}

	handler, ok := c.handlers[action]
	if !ok {
		return failure(ErrUnknownAction)
	}
	return handler(ctx, caller, params)
}

// LaunchData authorizes caller for the appointment's room and returns the
// configuration needed to join it. Repeated calls reuse the session record
// and restamp the caller's start time.
func (c *Coordinator) LaunchData(ctx context.Context, caller CallerIdentity, appointmentID string) (data LaunchData, err error) {
	logger := c.loggerWith(ctx, "LaunchData", append(caller.logAttrs(), "appointment_id", appointmentID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build launch data", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room", data.RoomName, "role", data.Role).InfoContext(ctx, "launch data issued")
	}()

	if strings.TrimSpace(c.settings.Domain) == "" {
		err = ErrNotConfigured
		return
	}

	var appt persistence.Appointment
	appt, err = c.appointment(ctx, appointmentID)
	if err != nil {
		return
	}

	var who participant
	who, err = c.authorizeLaunch(ctx, caller, appt)
	if err != nil {
		return
	}

	decision := scheduler.Evaluate(slotOf(appt), audienceOf(caller), c.now(), c.settings.location())
	if !decision.Joinable() {
		err = fmt.Errorf("%w (%s)", ErrNotJoinable, decision)
		return
	}

	var record *persistence.SessionRecord
	record, _, err = c.deps.Sessions.GetOrCreate(ctx, persistence.SessionSeed{
		AppointmentID: appt.ID,
		ProviderID:    appt.ProviderID,
		PatientID:     appt.PatientID,
	})
	if err != nil {
		err = fmt.Errorf("get or create session: %w", err)
		return
	}
	if record == nil {
		err = ErrSessionUnavailable
		return
	}

	room := RoomName(c.settings.roomPrefix(), appt.ID, record.CreatedAt)

	var credential *string
	if c.deps.Tokens != nil {
		var signed string
		signed, err = c.deps.Tokens.Issue(token.Grant{
			Room:        room,
			DisplayName: who.displayName,
			Email:       who.email,
			Moderator:   caller.IsModerator(),
		})
		if err != nil {
			err = fmt.Errorf("issue room token: %w", err)
			return
		}
		credential = &signed
	}

	if err = c.deps.Sessions.MarkStarted(ctx, appt.ID, caller.Role(), c.now()); err != nil {
		err = fmt.Errorf("mark started: %w", err)
		return
	}

	data = LaunchData{
		JitsiDomain:         c.settings.Domain,
		RoomName:            room,
		JWT:                 credential,
		DisplayName:         who.displayName,
		Email:               who.email,
		Role:                string(caller.Role()),
		IsModerator:         caller.IsModerator(),
		AppointmentID:       appt.ID,
		PatientID:           appt.PatientID,
		EnableLobby:         c.settings.EnableLobby,
		EnableChat:          c.settings.EnableChat,
		EnableScreenSharing: c.settings.EnableScreenSharing,
		EnableRecording:     c.settings.EnableRecording,
		DefaultLanguage:     c.settings.DefaultLanguage,
		RequireDisplayName:  c.settings.RequireDisplayName,
	}
	if record.EncounterID != nil {
		data.EncounterID = *record.EncounterID
	}

	if caller.Kind == CallerProvider {
		encounterID, linkErr := c.linkEncounter(ctx, caller.Username, appt)
		if encounterID != "" {
			data.EncounterID = encounterID
		}
		if linkErr != nil {
			logger.WarnContext(ctx, "clinical context not updated", "error", linkErr, "error_kind", ErrorKind(linkErr))
			data.Warnings = append(data.Warnings, "clinical context not updated")
		}
	}
	return
}

// SetStatus updates the appointment status after checking the caller's
// forgery token.
func (c *Coordinator) SetStatus(ctx context.Context, caller CallerIdentity, appointmentID, status, csrfToken string) (ack StatusAck, err error) {
	logger := c.loggerWith(ctx, "SetStatus", append(caller.logAttrs(), "appointment_id", appointmentID, "status", status)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set appointment status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "appointment status updated")
	}()

	if c.deps.CSRF == nil || !c.deps.CSRF.VerifyCSRF(caller, csrfToken) {
		err = ErrAccessDenied
		return
	}

	status = strings.TrimSpace(status)
	vErr := &ValidationError{}
	if strings.TrimSpace(appointmentID) == "" {
		vErr.add("appointment_id", "appointment_id is required")
	}
	switch {
	case status == "":
		vErr.add("status", "status is required")
	case len(status) > maxStatusLength:
		vErr.add("status", fmt.Sprintf("status must be at most %d characters", maxStatusLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var appt persistence.Appointment
	appt, err = c.appointment(ctx, appointmentID)
	if err != nil {
		return
	}

	if err = c.deps.Appointments.UpdateAppointmentStatus(ctx, appt.ID, status, c.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrAppointmentNotFound
			return
		}
		err = fmt.Errorf("update appointment status: %w", err)
		return
	}

	ack = StatusAck{Success: true, Status: status}
	return
}

// SetEncounter resolves the day's encounter for the appointment and opens it
// in the provider's clinical context.
func (c *Coordinator) SetEncounter(ctx context.Context, caller CallerIdentity, appointmentID string) (ack EncounterAck, err error) {
	logger := c.loggerWith(ctx, "SetEncounter", append(caller.logAttrs(), "appointment_id", appointmentID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set encounter", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("encounter_id", ack.EncounterID).InfoContext(ctx, "encounter set")
	}()

	if caller.Kind != CallerProvider {
		err = ErrAccessDenied
		return
	}

	var appt persistence.Appointment
	appt, err = c.appointment(ctx, appointmentID)
	if err != nil {
		return
	}
	if appt.PatientID == "" {
		err = ErrSessionUnavailable
		return
	}

	var encounterID string
	encounterID, err = c.linkEncounter(ctx, caller.Username, appt)
	if err != nil {
		return
	}

	ack = EncounterAck{Success: true, EncounterID: encounterID}
	return
}

// Heartbeat records that the caller is still in the room.
func (c *Coordinator) Heartbeat(ctx context.Context, caller CallerIdentity, appointmentID string) (ack HeartbeatAck, err error) {
	logger := c.loggerWith(ctx, "Heartbeat", append(caller.logAttrs(), "appointment_id", appointmentID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record heartbeat", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "heartbeat recorded")
	}()

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		err = requiredAppointment()
		return
	}

	if caller.Kind == CallerPatient {
		var record *persistence.SessionRecord
		record, err = c.deps.Sessions.GetByAppointment(ctx, appointmentID, "")
		if err != nil {
			err = fmt.Errorf("load session: %w", err)
			return
		}
		if record == nil {
			err = ErrSessionNotFound
			return
		}
		if record.PatientID != caller.PatientID {
			err = ErrAccessDenied
			return
		}
	}

	if err = c.deps.Sessions.MarkHeartbeat(ctx, appointmentID, caller.Role(), c.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrSessionNotFound
			return
		}
		err = fmt.Errorf("mark heartbeat: %w", err)
		return
	}

	ack = HeartbeatAck{Success: true}
	return
}

// PatientReadyCheck reports whether the provider has a fresh heartbeat in the
// appointment's session. A missing session reads as not ready and is never
// created by this call.
func (c *Coordinator) PatientReadyCheck(ctx context.Context, caller CallerIdentity, appointmentID string) (ready Readiness, err error) {
	logger := c.loggerWith(ctx, "PatientReadyCheck", append(caller.logAttrs(), "appointment_id", appointmentID)...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check provider readiness", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "provider readiness checked", "provider_ready", ready.ProviderReady)
	}()

	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		err = requiredAppointment()
		return
	}

	var record *persistence.SessionRecord
	record, err = c.deps.Sessions.GetByAppointment(ctx, appointmentID, "")
	if err != nil {
		err = fmt.Errorf("load session: %w", err)
		return
	}
	if record == nil {
		return
	}
	if caller.Kind == CallerPatient && record.PatientID != caller.PatientID {
		err = ErrAccessDenied
		return
	}

	ready.ProviderReady = scheduler.PresenceFresh(record.ProviderLastUpdate, c.now())
	return
}

type participant struct {
	displayName string
	email       string
}

func (c *Coordinator) authorizeLaunch(ctx context.Context, caller CallerIdentity, appt persistence.Appointment) (participant, error) {
	switch caller.Kind {
	case CallerPatient:
		if caller.PatientID == "" || appt.PatientID != caller.PatientID {
			return participant{}, ErrAccessDenied
		}
		return c.patientParticipant(ctx, caller.PatientID)
	case CallerProvider:
		if caller.Username == "" || c.deps.Users == nil {
			return participant{}, ErrAccessDenied
		}
		user, err := c.deps.Users.GetUserByUsername(ctx, caller.Username)
		if errors.Is(err, persistence.ErrNotFound) {
			return participant{}, ErrAccessDenied
		}
		if err != nil {
			return participant{}, fmt.Errorf("lookup user: %w", err)
		}
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if name == "" {
			name = caller.Username
		}
		return participant{displayName: name, email: user.Email}, nil
	default:
		return participant{}, ErrAccessDenied
	}
}

func (c *Coordinator) patientParticipant(ctx context.Context, patientID string) (participant, error) {
	who := participant{displayName: "Patient"}
	if c.deps.Patients == nil {
		return who, nil
	}
	patient, err := c.deps.Patients.GetPatient(ctx, patientID)
	if errors.Is(err, persistence.ErrNotFound) {
		return who, nil
	}
	if err != nil {
		return participant{}, fmt.Errorf("lookup patient: %w", err)
	}
	if name := strings.TrimSpace(patient.FirstName + " " + patient.LastName); name != "" {
		who.displayName = name
	}
	who.email = patient.Email
	return who, nil
}

func (c *Coordinator) appointment(ctx context.Context, appointmentID string) (persistence.Appointment, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return persistence.Appointment{}, requiredAppointment()
	}
	appt, err := c.deps.Appointments.GetAppointment(ctx, appointmentID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.Appointment{}, ErrAppointmentNotFound
	}
	if err != nil {
		return persistence.Appointment{}, fmt.Errorf("lookup appointment: %w", err)
	}
	return appt, nil
}

func requiredAppointment() error {
	vErr := &ValidationError{}
	vErr.add("appointment_id", "appointment_id is required")
	return vErr
}

func slotOf(appt persistence.Appointment) scheduler.Slot {
	return scheduler.Slot{Date: appt.EventDate, StartTime: appt.StartTime, Status: appt.Status}
}

func audienceOf(caller CallerIdentity) scheduler.Audience {
	if caller.Kind == CallerPatient {
		return scheduler.AudiencePatient
	}
	return scheduler.AudienceProvider
}

func respond(body any, err error) Result {
	if err != nil {
		return failure(err)
	}
	return Result{Status: StatusOK, Body: body}
}

// failure maps err onto a status class. Authorization and unexpected errors
// carry generic messages only.
func failure(err error) Result {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return Result{Status: StatusBadRequest, Body: ErrorBody{Error: vErr.Error()}}
	case errors.Is(err, ErrAccessDenied):
		return Result{Status: StatusForbidden, Body: ErrorBody{Error: ErrAccessDenied.Error()}}
	case errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionUnavailable),
		errors.Is(err, ErrNotJoinable):
		return Result{Status: StatusBadRequest, Body: ErrorBody{Error: err.Error()}}
	case errors.Is(err, ErrUnknownAction):
		return Result{Status: StatusNotFound, Body: ErrorBody{Error: ErrUnknownAction.Error()}}
	case errors.Is(err, ErrNotConfigured):
		return Result{Status: StatusServerError, Body: ErrorBody{Error: ErrNotConfigured.Error()}}
	default:
		return Result{Status: StatusServerError, Body: ErrorBody{Error: "internal error"}}
	}
}
