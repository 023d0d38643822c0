package application

import "strings"

// Action names one coordinator behaviour.
type Action int

const (
	ActionUnrecognized Action = iota
	ActionLaunchData
	ActionSetStatus
	ActionSetEncounter
	ActionHeartbeat
	ActionPatientReadyCheck
	ActionSettings
)

var actionNames = map[string]Action{
	"launch_data":         ActionLaunchData,
	"set_status":          ActionSetStatus,
	"set_encounter":       ActionSetEncounter,
	"heartbeat":           ActionHeartbeat,
	"patient_ready_check": ActionPatientReadyCheck,
	"settings":            ActionSettings,

	// Names used by the browser client of the calendar module.
	"get_telehealth_launch_data": ActionLaunchData,
	"set_appointment_status":     ActionSetStatus,
	"set_current_appt_encounter": ActionSetEncounter,
	"conference_session_update":  ActionHeartbeat,
	"patient_appointment_ready":  ActionPatientReadyCheck,
	"get_telehealth_settings":    ActionSettings,
}

// ParseAction resolves a wire name. Unknown names yield ActionUnrecognized.
func ParseAction(name string) Action {
	return actionNames[strings.ToLower(strings.TrimSpace(name))]
}

func (a Action) String() string {
	switch a {
	case ActionLaunchData:
		return "launch_data"
	case ActionSetStatus:
		return "set_status"
	case ActionSetEncounter:
		return "set_encounter"
	case ActionHeartbeat:
		return "heartbeat"
	case ActionPatientReadyCheck:
		return "patient_ready_check"
	case ActionSettings:
		return "settings"
	default:
		return "unrecognized"
	}
}

// Variant is a deployment of the action endpoint.
type Variant int

const (
	// VariantProvider serves staff sessions and reaches every action.
	VariantProvider Variant = iota
	// VariantPortal serves patient portal sessions.
	VariantPortal
)

func (v Variant) String() string {
	if v == VariantPortal {
		return "portal"
	}
	return "provider"
}

// Allows reports whether action is reachable through v.
func (v Variant) Allows(action Action) bool {
	switch action {
	case ActionLaunchData, ActionHeartbeat, ActionPatientReadyCheck, ActionSettings:
		return true
	case ActionSetStatus, ActionSetEncounter:
		return v == VariantProvider
	default:
		return false
	}
}

func (v Variant) callerKind() CallerKind {
	if v == VariantPortal {
		return CallerPatient
	}
	return CallerProvider
}
