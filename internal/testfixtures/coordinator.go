package testfixtures

import (
	"github.com/example/telehealth-gateway/internal/application"
	"github.com/example/telehealth-gateway/internal/directory"
)

// CoordinatorOption configures a coordinator built by the harness.
type CoordinatorOption func(*application.Dependencies, *application.Settings)

// WithTokens enables signed room credentials.
func WithTokens(tokens application.TokenIssuer) CoordinatorOption {
	return func(deps *application.Dependencies, _ *application.Settings) {
		deps.Tokens = tokens
	}
}

// WithCSRF sets the forgery token check.
func WithCSRF(csrf application.CSRFVerifier) CoordinatorOption {
	return func(deps *application.Dependencies, _ *application.Settings) {
		deps.CSRF = csrf
	}
}

// WithSettings replaces the default conferencing settings.
func WithSettings(settings application.Settings) CoordinatorOption {
	return func(_ *application.Dependencies, s *application.Settings) {
		*s = settings
	}
}

// DefaultSettings mirrors the service defaults.
func DefaultSettings() application.Settings {
	return application.Settings{
		Domain:               "meet.jit.si",
		RoomPrefix:           application.DefaultRoomPrefix,
		DefaultLanguage:      "es",
		EnableChat:           true,
		EnableScreenSharing:  true,
		RequireDisplayName:   true,
		PatientPortalEnabled: true,
	}
}

// Coordinator wires a coordinator to the harness store, with directory
// caching in front of user and patient lookups as in the service.
func (h *SQLiteHarness) Coordinator(opts ...CoordinatorOption) *application.Coordinator {
	settings := DefaultSettings()
	deps := application.Dependencies{
		Sessions:     h.Store.Sessions,
		Appointments: h.Store.Appointments,
		Encounters:   h.Store.Encounters,
		Users:        directory.NewUsers(h.Store.Users, 16, directory.DefaultTTL),
		Patients:     directory.NewPatients(h.Store.Patients, 16, directory.DefaultTTL),
		Clinical:     h.Store.ProviderContexts,
	}
	for _, opt := range opts {
		opt(&deps, &settings)
	}
	return application.NewCoordinator(deps, settings, h.Clock.Now)
}
