package application

import (
	"strings"

	"github.com/example/telehealth-gateway/internal/persistence"
)

// CallerKind identifies the surface a request arrived through.
type CallerKind int

const (
	CallerAnonymous CallerKind = iota
	CallerProvider
	CallerPatient
)

// CallerIdentity is the authenticated principal behind a request. It is
// derived from the host session, never from request parameters.
type CallerIdentity struct {
	Kind      CallerKind
	Username  string
	PatientID string
}

// ProviderCaller returns the identity of a staff user.
func ProviderCaller(username string) CallerIdentity {
	return CallerIdentity{Kind: CallerProvider, Username: strings.TrimSpace(username)}
}

// PatientCaller returns the identity of a portal patient.
func PatientCaller(patientID string) CallerIdentity {
	return CallerIdentity{Kind: CallerPatient, PatientID: strings.TrimSpace(patientID)}
}

// Role maps the caller onto a session side. Anonymous callers have none.
func (c CallerIdentity) Role() persistence.Role {
	switch c.Kind {
	case CallerProvider:
		return persistence.RoleProvider
	case CallerPatient:
		return persistence.RolePatient
	default:
		return ""
	}
}

// IsModerator reports whether the caller runs the room.
func (c CallerIdentity) IsModerator() bool {
	return c.Kind == CallerProvider
}

func (c CallerIdentity) authenticated() bool {
	switch c.Kind {
	case CallerProvider:
		return c.Username != ""
	case CallerPatient:
		return c.PatientID != ""
	default:
		return false
	}
}

func (c CallerIdentity) logAttrs() []any {
	switch c.Kind {
	case CallerProvider:
		return []any{"caller_kind", "provider", "username", c.Username}
	case CallerPatient:
		return []any{"caller_kind", "patient", "patient_id", c.PatientID}
	default:
		return []any{"caller_kind", "anonymous"}
	}
}
