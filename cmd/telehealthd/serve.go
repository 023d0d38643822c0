package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/telehealth-gateway/internal/application"
	"github.com/example/telehealth-gateway/internal/config"
	"github.com/example/telehealth-gateway/internal/directory"
	httptransport "github.com/example/telehealth-gateway/internal/http"
	"github.com/example/telehealth-gateway/internal/identity"
	"github.com/example/telehealth-gateway/internal/persistence/sqlite"
	"github.com/example/telehealth-gateway/internal/persistence/sqlite/migration"
	"github.com/example/telehealth-gateway/internal/token"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP action endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.load(cmd, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	authority, err := identity.NewAuthority(cfg.IdentitySecret, time.Now)
	if err != nil {
		return err
	}
	coordinator, err := newCoordinator(cfg, store, authority, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newHandler(cfg, coordinator, store, authority, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("telehealth API listening", "addr", server.Addr, "patient_portal", cfg.Jitsi.PatientPortalEnabled, "jwt", cfg.Jitsi.JWTEnabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}

func openStore(cfg config.Config, logger *slog.Logger) (*sqlite.Store, error) {
	store, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), sqlite.Options{Timeout: cfg.StoreTimeout, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func settingsFrom(cfg config.Config) application.Settings {
	return application.Settings{
		Domain:               cfg.Jitsi.Domain,
		RoomPrefix:           cfg.Jitsi.RoomPrefix,
		DefaultLanguage:      cfg.Jitsi.DefaultLanguage,
		EnableLobby:          cfg.Jitsi.EnableLobby,
		EnableChat:           cfg.Jitsi.EnableChat,
		EnableRecording:      cfg.Jitsi.EnableRecording,
		EnableScreenSharing:  cfg.Jitsi.EnableScreenSharing,
		RequireDisplayName:   cfg.Jitsi.RequireDisplayName,
		PatientPortalEnabled: cfg.Jitsi.PatientPortalEnabled,
		Location:             cfg.Location,
	}
}

func newCoordinator(cfg config.Config, store *sqlite.Store, authority *identity.Authority, logger *slog.Logger) (*application.Coordinator, error) {
	deps := application.Dependencies{
		Sessions:     store.Sessions,
		Appointments: store.Appointments,
		Encounters:   store.Encounters,
		Users:        directory.NewUsers(store.Users, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL),
		Patients:     directory.NewPatients(store.Patients, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL),
		Clinical:     store.ProviderContexts,
		CSRF:         httptransport.NewCSRFVerifier(authority),
	}

	if cfg.Jitsi.JWTEnabled {
		issuer, err := token.NewIssuer(cfg.Jitsi.JWTAppID, cfg.Jitsi.JWTAppSecret, token.WithTTL(cfg.Jitsi.JWTTTL))
		if err != nil {
			return nil, fmt.Errorf("configure room credentials: %w", err)
		}
		deps.Tokens = issuer
	}

	return application.NewCoordinatorWithLogger(deps, settingsFrom(cfg), time.Now, logger), nil
}

func newHandler(cfg config.Config, coordinator *application.Coordinator, pinger httptransport.Pinger, authority *identity.Authority, logger *slog.Logger) http.Handler {
	routes := httptransport.RouterConfig{
		Provider: httptransport.NewActionHandler(coordinator, application.VariantProvider, logger),
		Health:   httptransport.NewHealthHandler(pinger, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.ResolveIdentity(authority, logger),
		},
	}
	if cfg.Jitsi.PatientPortalEnabled {
		routes.Portal = httptransport.NewActionHandler(coordinator, application.VariantPortal, logger)
	}
	return httptransport.NewRouter(routes)
}
