package scheduler

import (
	"strings"
	"time"
)

const (
	// JoinWindow is the distance on either side of the scheduled start during
	// which a room may be entered. Both bounds are inclusive.
	JoinWindow = 2 * time.Hour
	// PresenceWindow is how long a heartbeat keeps a participant counted as present.
	PresenceWindow = 15 * time.Second
)

// Appointment status codes that affect eligibility.
const (
	StatusCheckedOut = ">"
	StatusPending    = "^"
)

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04:05", "15:04"}

// WithinJoinWindow reports whether now lies within JoinWindow of scheduledAt.
// A zero scheduled time is never joinable.
func WithinJoinWindow(scheduledAt, now time.Time) bool {
	if scheduledAt.IsZero() || now.IsZero() {
		return false
	}
	diff := now.Sub(scheduledAt)
	if diff < 0 {
		diff = -diff
	}
	return diff <= JoinWindow
}

// PresenceFresh reports whether a participant last seen at lastSeen still
// counts as present at now.
func PresenceFresh(lastSeen *time.Time, now time.Time) bool {
	if lastSeen == nil || lastSeen.IsZero() {
		return false
	}
	return now.Before(lastSeen.Add(PresenceWindow))
}

// ParseScheduledAt combines an appointment date (YYYY-MM-DD) and start time
// (HH:MM[:SS]) in loc. The boolean is false when either part is missing or
// malformed.
func ParseScheduledAt(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), true
	}
	return time.Time{}, false
}

// Audience distinguishes the party asking to join.
type Audience int

const (
	AudienceProvider Audience = iota
	AudiencePatient
)

// Slot is the scheduling view of an appointment.
type Slot struct {
	Date      string
	StartTime string
	Status    string
}

// Decision is the outcome of a join eligibility check.
type Decision int

const (
	DecisionJoinable Decision = iota
	DecisionEnded
	DecisionPending
	DecisionTooEarly
	DecisionExpired
	DecisionInvalidTime
)

func (d Decision) String() string {
	switch d {
	case DecisionJoinable:
		return "joinable"
	case DecisionEnded:
		return "ended"
	case DecisionPending:
		return "pending"
	case DecisionTooEarly:
		return "too_early"
	case DecisionExpired:
		return "expired"
	case DecisionInvalidTime:
		return "invalid_time"
	default:
		return "unknown"
	}
}

// Joinable reports whether the decision admits the caller.
func (d Decision) Joinable() bool {
	return d == DecisionJoinable
}

// Evaluate decides whether audience may enter the room for slot at now.
// Checked-out appointments are closed to everyone; pending ones are closed
// to patients only. Unparsable times fail closed.
func Evaluate(slot Slot, audience Audience, now time.Time, loc *time.Location) Decision {
	status := strings.TrimSpace(slot.Status)
	if status == StatusCheckedOut {
		return DecisionEnded
	}
	if audience == AudiencePatient && status == StatusPending {
		return DecisionPending
	}

	scheduledAt, ok := ParseScheduledAt(slot.Date, slot.StartTime, loc)
	if !ok {
		return DecisionInvalidTime
	}
	if WithinJoinWindow(scheduledAt, now) {
		return DecisionJoinable
	}
	if now.Before(scheduledAt) {
		return DecisionTooEarly
	}
	return DecisionExpired
}
