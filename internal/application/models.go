package application

import (
	"strings"
	"time"
)

// Settings is the conferencing configuration the coordinator works from.
type Settings struct {
	Domain               string
	RoomPrefix           string
	DefaultLanguage      string
	EnableLobby          bool
	EnableChat           bool
	EnableRecording      bool
	EnableScreenSharing  bool
	RequireDisplayName   bool
	PatientPortalEnabled bool
	// Location interprets appointment dates and times. Nil means UTC.
	Location *time.Location
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Settings) roomPrefix() string {
	if prefix := strings.TrimSpace(s.RoomPrefix); prefix != "" {
		return prefix
	}
	return DefaultRoomPrefix
}

// SettingsView is the public feature bundle. It never carries secrets.
type SettingsView struct {
	JitsiDomain            string `json:"jitsiDomain"`
	EnableLobby            bool   `json:"enableLobby"`
	EnableChat             bool   `json:"enableChat"`
	EnableScreenSharing    bool   `json:"enableScreenSharing"`
	EnableRecording        bool   `json:"enableRecording"`
	DefaultLanguage        string `json:"defaultLanguage"`
	RequireDisplayName     bool   `json:"requireDisplayName"`
	IsPatientPortalEnabled bool   `json:"isPatientPortalEnabled"`
}

// View returns the public form of s.
func (s Settings) View() SettingsView {
	return SettingsView{
		JitsiDomain:            s.Domain,
		EnableLobby:            s.EnableLobby,
		EnableChat:             s.EnableChat,
		EnableScreenSharing:    s.EnableScreenSharing,
		EnableRecording:        s.EnableRecording,
		DefaultLanguage:        s.DefaultLanguage,
		RequireDisplayName:     s.RequireDisplayName,
		IsPatientPortalEnabled: s.PatientPortalEnabled,
	}
}

// LaunchData is the room configuration handed to the conferencing widget.
type LaunchData struct {
	JitsiDomain         string   `json:"jitsiDomain"`
	RoomName            string   `json:"roomName"`
	JWT                 *string  `json:"jwt"`
	DisplayName         string   `json:"displayName"`
	Email               string   `json:"email"`
	Role                string   `json:"role"`
	IsModerator         bool     `json:"isModerator"`
	AppointmentID       string   `json:"appointmentId"`
	PatientID           string   `json:"patientId"`
	EncounterID         string   `json:"encounterId,omitempty"`
	EnableLobby         bool     `json:"enableLobby"`
	EnableChat          bool     `json:"enableChat"`
	EnableScreenSharing bool     `json:"enableScreenSharing"`
	EnableRecording     bool     `json:"enableRecording"`
	DefaultLanguage     string   `json:"defaultLanguage"`
	RequireDisplayName  bool     `json:"requireDisplayName"`
	Warnings            []string `json:"warnings,omitempty"`
}

// StatusAck acknowledges an appointment status change.
type StatusAck struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// EncounterAck reports the encounter linked to an appointment.
type EncounterAck struct {
	Success     bool   `json:"success"`
	EncounterID string `json:"encounter"`
}

// HeartbeatAck acknowledges a heartbeat.
type HeartbeatAck struct {
	Success bool `json:"success"`
}

// Readiness answers whether the provider is in the room.
type Readiness struct {
	ProviderReady bool `json:"providerReady"`
}

// ErrorBody is the body of every failed action.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusClass is the outcome class of an action. Transports map it onto
// their own status codes.
type StatusClass int

const (
	StatusOK StatusClass = iota
	StatusBadRequest
	StatusForbidden
	StatusNotFound
	StatusServerError
)

func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusBadRequest:
		return "bad_request"
	case StatusForbidden:
		return "forbidden"
	case StatusNotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// Result is the outcome of one dispatched action.
type Result struct {
	Status StatusClass
	Body   any
}

// Params is the flat, untrusted parameter map of a request.
type Params map[string]string

func (p Params) get(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(p[key]); value != "" {
			return value
		}
	}
	return ""
}

func (p Params) appointmentID() string {
	return p.get("appointment_id", "pc_eid", "eid")
}
