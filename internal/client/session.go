package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/telehealth-gateway/internal/application"
)

var (
	// ErrSessionActive is returned when Launch is called while a session is open.
	ErrSessionActive = errors.New("client: a conference session is already active")
	// ErrProviderNotReady is returned to patients whose provider has not joined.
	ErrProviderNotReady = errors.New("client: provider has not started the session")
	// ErrProviderStatusUnknown is returned when provider readiness could not be
	// determined. It is never treated as ready.
	ErrProviderStatusUnknown = errors.New("client: provider status unknown")
)

// Widget is an open conferencing room on the caller's side.
type Widget interface {
	Dispose() error
}

// WidgetOpener opens the conferencing widget for a launch configuration.
type WidgetOpener func(ctx context.Context, data application.LaunchData) (Widget, error)

// StatusPrompt asks a provider for the appointment status to record when the
// call ends. ok is false when the provider skips the update.
type StatusPrompt func(ctx context.Context, data application.LaunchData) (status string, ok bool)

// ConferenceSession owns at most one open room with its heartbeat.
type ConferenceSession struct {
	api      *Client
	open     WidgetOpener
	prompt   StatusPrompt
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	active *openRoom
}

type openRoom struct {
	data      application.LaunchData
	widget    Widget
	heartbeat *Heartbeat
}

// SessionOption configures a ConferenceSession.
type SessionOption func(*ConferenceSession)

// WithStatusPrompt sets the end-of-call status prompt for providers.
func WithStatusPrompt(prompt StatusPrompt) SessionOption {
	return func(s *ConferenceSession) {
		s.prompt = prompt
	}
}

// WithHeartbeatInterval overrides HeartbeatInterval.
func WithHeartbeatInterval(interval time.Duration) SessionOption {
	return func(s *ConferenceSession) {
		s.interval = interval
	}
}

// NewConferenceSession builds a session manager over api.
func NewConferenceSession(api *Client, open WidgetOpener, opts ...SessionOption) *ConferenceSession {
	s := &ConferenceSession{
		api:      api,
		open:     open,
		interval: HeartbeatInterval,
		logger:   api.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch fetches the launch configuration, opens the widget with it and
// starts the heartbeat.
func (s *ConferenceSession) Launch(ctx context.Context, appointmentID string) (application.LaunchData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return application.LaunchData{}, ErrSessionActive
	}

	data, err := s.api.LaunchData(ctx, appointmentID)
	if err != nil {
		return application.LaunchData{}, fmt.Errorf("launch: %w", err)
	}

	widget, err := s.open(ctx, data)
	if err != nil {
		return application.LaunchData{}, fmt.Errorf("open widget: %w", err)
	}

	apptID := data.AppointmentID
	if apptID == "" {
		apptID = appointmentID
	}
	heartbeat := StartHeartbeat(ctx, s.interval, func(ctx context.Context) error {
		return s.api.Heartbeat(ctx, apptID)
	}, s.logger.With("appointment_id", apptID))

	s.active = &openRoom{data: data, widget: widget, heartbeat: heartbeat}
	return data, nil
}

// LaunchAsPatient launches only once the provider is present. A failed
// readiness check yields ErrProviderStatusUnknown rather than a launch.
func (s *ConferenceSession) LaunchAsPatient(ctx context.Context, appointmentID string) (application.LaunchData, error) {
	ready, err := s.api.ProviderReady(ctx, appointmentID)
	if err != nil {
		return application.LaunchData{}, fmt.Errorf("%w: %v", ErrProviderStatusUnknown, err)
	}
	if !ready {
		return application.LaunchData{}, ErrProviderNotReady
	}
	return s.Launch(ctx, appointmentID)
}

// Active returns the configuration of the open room, if any.
func (s *ConferenceSession) Active() (application.LaunchData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return application.LaunchData{}, false
	}
	return s.active.data, true
}

// End closes the open room. The heartbeat stops before the widget is
// disposed. When promptStatus is set and the caller moderates the room, the
// status prompt runs and its answer is recorded.
func (s *ConferenceSession) End(ctx context.Context, promptStatus bool) error {
	s.mu.Lock()
	room := s.active
	s.active = nil
	s.mu.Unlock()

	if room == nil {
		return nil
	}

	room.heartbeat.Stop()

	if room.widget != nil {
		if err := room.widget.Dispose(); err != nil {
			s.logger.WarnContext(ctx, "failed to dispose conference widget", "error", err)
		}
	}

	if !promptStatus || !room.data.IsModerator || s.prompt == nil {
		return nil
	}
	status, ok := s.prompt(ctx, room.data)
	if !ok {
		return nil
	}
	if _, err := s.api.SetStatus(ctx, room.data.AppointmentID, status); err != nil {
		return fmt.Errorf("record status: %w", err)
	}
	return nil
}
