package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
	"github.com/example/telehealth-gateway/internal/scheduler"
)

const (
	encounterReason      = "Telehealth Visit - Jitsi"
	encounterSensitivity = "normal"
)

// resolveEncounter returns the patient's encounter on the appointment date,
// creating one when none exists. The create is keyed by the appointment date,
// so concurrent resolutions for the same day converge on one encounter.
func (c *Coordinator) resolveEncounter(ctx context.Context, appt persistence.Appointment) (string, error) {
	if c.deps.Encounters == nil {
		return "", fmt.Errorf("encounter repository not configured")
	}

	loc := c.settings.location()
	existing, err := c.deps.Encounters.ListEncountersForPatient(ctx, appt.PatientID)
	if err != nil {
		return "", fmt.Errorf("list encounters: %w", err)
	}
	for _, enc := range existing {
		if enc.Date.In(loc).Format(time.DateOnly) == appt.EventDate {
			return enc.ID, nil
		}
	}

	date, ok := scheduler.ParseScheduledAt(appt.EventDate, appt.StartTime, loc)
	if !ok {
		day, err := time.ParseInLocation(time.DateOnly, appt.EventDate, loc)
		if err != nil {
			return "", fmt.Errorf("appointment %s has no usable date", appt.ID)
		}
		date = day
	}

	created, err := c.deps.Encounters.CreateEncounter(ctx, persistence.Encounter{
		PatientID:         appt.PatientID,
		ProviderID:        appt.ProviderID,
		Date:              date,
		Day:               appt.EventDate,
		Reason:            encounterReason,
		FacilityID:        appt.FacilityID,
		CategoryID:        appt.CategoryID,
		BillingFacilityID: appt.BillingLocationID,
		Sensitivity:       encounterSensitivity,
	})
	if err != nil {
		return "", fmt.Errorf("create encounter: %w", err)
	}
	return created.ID, nil
}

// linkEncounter opens the appointment's patient and encounter in the staff
// user's clinical context and links the encounter to the session record when
// one exists.
func (c *Coordinator) linkEncounter(ctx context.Context, username string, appt persistence.Appointment) (string, error) {
	now := c.now()
	if c.deps.Clinical != nil {
		if err := c.deps.Clinical.SetActivePatient(ctx, username, appt.PatientID, now); err != nil {
			return "", fmt.Errorf("set active patient: %w", err)
		}
	}

	encounterID, err := c.resolveEncounter(ctx, appt)
	if err != nil {
		return "", err
	}

	if c.deps.Clinical != nil {
		if err := c.deps.Clinical.SetActiveEncounter(ctx, username, encounterID, now); err != nil {
			return encounterID, fmt.Errorf("set active encounter: %w", err)
		}
	}

	record, err := c.deps.Sessions.GetByAppointment(ctx, appt.ID, appt.ProviderID)
	if err != nil {
		return encounterID, fmt.Errorf("load session: %w", err)
	}
	if record == nil || (record.EncounterID != nil && *record.EncounterID == encounterID) {
		return encounterID, nil
	}
	if err := c.deps.Sessions.UpdateEncounter(ctx, appt.ID, encounterID); err != nil {
		return encounterID, fmt.Errorf("link session encounter: %w", err)
	}
	return encounterID, nil
}
