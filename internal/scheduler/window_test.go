package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinJoinWindow(t *testing.T) {
	t.Parallel()

	scheduled := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "exact start", now: scheduled, want: true},
		{name: "one hour fifty nine before", now: scheduled.Add(-(time.Hour + 59*time.Minute)), want: true},
		{name: "lower bound inclusive", now: scheduled.Add(-2 * time.Hour), want: true},
		{name: "upper bound inclusive", now: scheduled.Add(2 * time.Hour), want: true},
		{name: "one second past upper bound", now: scheduled.Add(2*time.Hour + time.Second), want: false},
		{name: "one second before lower bound", now: scheduled.Add(-(2*time.Hour + time.Second)), want: false},
		{name: "two hours one minute before", now: scheduled.Add(-(2*time.Hour + time.Minute)), want: false},
		{name: "zero now", now: time.Time{}, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, WithinJoinWindow(scheduled, tc.now))
		})
	}

	t.Run("bounds measured from now", func(t *testing.T) {
		t.Parallel()
		now := scheduled
		assert.True(t, WithinJoinWindow(now.Add(-2*time.Hour), now))
		assert.True(t, WithinJoinWindow(now.Add(2*time.Hour), now))
		assert.False(t, WithinJoinWindow(now.Add(-2*time.Hour-time.Second), now))
		assert.False(t, WithinJoinWindow(now.Add(2*time.Hour+time.Second), now))
	})

	t.Run("zero scheduled time fails closed", func(t *testing.T) {
		t.Parallel()
		assert.False(t, WithinJoinWindow(time.Time{}, scheduled))
	})

	t.Run("window is symmetric", func(t *testing.T) {
		t.Parallel()
		for _, offset := range []time.Duration{0, time.Minute, 90 * time.Minute, JoinWindow, JoinWindow + time.Nanosecond} {
			assert.Equal(t,
				WithinJoinWindow(scheduled, scheduled.Add(offset)),
				WithinJoinWindow(scheduled, scheduled.Add(-offset)),
				"offset %s", offset)
		}
	})
}

func TestPresenceFresh(t *testing.T) {
	t.Parallel()

	seen := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	assert.True(t, PresenceFresh(&seen, seen.Add(10*time.Second)))
	assert.True(t, PresenceFresh(&seen, seen.Add(14*time.Second+999*time.Millisecond)))
	assert.False(t, PresenceFresh(&seen, seen.Add(15*time.Second)), "boundary is exclusive")
	assert.False(t, PresenceFresh(&seen, seen.Add(20*time.Second)))
	assert.False(t, PresenceFresh(nil, seen))

	var zero time.Time
	assert.False(t, PresenceFresh(&zero, seen))
}

func TestParseScheduledAt(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ART", -3*60*60)

	got, ok := ParseScheduledAt("2025-03-10", "14:00:00", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, loc), got)

	got, ok = ParseScheduledAt(" 2025-03-10 ", "09:30", nil)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), got)

	for _, tc := range [][2]string{
		{"", "14:00:00"},
		{"2025-03-10", ""},
		{"10/03/2025", "14:00:00"},
		{"2025-03-10", "2pm"},
		{"2025-02-30", "14:00:00"},
	} {
		_, ok := ParseScheduledAt(tc[0], tc[1], time.UTC)
		assert.False(t, ok, "date=%q time=%q", tc[0], tc[1])
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	slot := Slot{Date: "2025-03-10", StartTime: "14:00:00", Status: "-"}

	tests := []struct {
		name     string
		slot     Slot
		audience Audience
		want     Decision
	}{
		{name: "provider within window", slot: slot, audience: AudienceProvider, want: DecisionJoinable},
		{name: "patient within window", slot: slot, audience: AudiencePatient, want: DecisionJoinable},
		{name: "checked out closes room", slot: Slot{Date: slot.Date, StartTime: slot.StartTime, Status: StatusCheckedOut}, audience: AudienceProvider, want: DecisionEnded},
		{name: "pending blocks patient", slot: Slot{Date: slot.Date, StartTime: slot.StartTime, Status: StatusPending}, audience: AudiencePatient, want: DecisionPending},
		{name: "pending admits provider", slot: Slot{Date: slot.Date, StartTime: slot.StartTime, Status: StatusPending}, audience: AudienceProvider, want: DecisionJoinable},
		{name: "too early", slot: Slot{Date: "2025-03-10", StartTime: "17:00:00"}, audience: AudiencePatient, want: DecisionTooEarly},
		{name: "expired", slot: Slot{Date: "2025-03-10", StartTime: "08:00:00"}, audience: AudienceProvider, want: DecisionExpired},
		{name: "missing time fails closed", slot: Slot{Date: "2025-03-10"}, audience: AudienceProvider, want: DecisionInvalidTime},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Evaluate(tc.slot, tc.audience, now, time.UTC)
			assert.Equal(t, tc.want, got, "got %s", got)
			assert.Equal(t, tc.want == DecisionJoinable, got.Joinable())
		})
	}
}
