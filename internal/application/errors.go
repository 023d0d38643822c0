package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAccessDenied is returned for every authorization failure. Callers see
	// the same message whatever the reason.
	ErrAccessDenied = errors.New("access denied")
	// ErrAppointmentNotFound is returned when the appointment id matches nothing.
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrSessionNotFound is returned when no session record exists yet.
	ErrSessionNotFound = errors.New("telehealth session not found")
	// ErrSessionUnavailable is returned when an appointment lacks the provider
	// or patient needed to open a session.
	ErrSessionUnavailable = errors.New("appointment has no provider or patient assigned")
	// ErrNotJoinable is returned when the appointment cannot be entered now.
	ErrNotJoinable = errors.New("appointment is not joinable at this time")
	// ErrUnknownAction is returned for unrecognised or unreachable actions.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNotConfigured is returned when telehealth settings are incomplete.
	ErrNotConfigured = errors.New("telehealth not configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error returns the first field message in field order.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, v.FieldErrors[field])
	}
	return strings.Join(messages, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
