// Package sqlite implements the persistence repositories on SQLite through
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/telehealth-gateway/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the repositories that share one connection pool.
type Store struct {
	pool *ConnectionPool

	Sessions         *SessionRecordRepository
	Appointments     *AppointmentRepository
	Users            *UserRepository
	Patients         *PatientRepository
	Encounters       *EncounterRepository
	ProviderContexts *ProviderContextRepository
}

// Options tunes a Store.
type Options struct {
	// Timeout bounds every store call. Zero means DefaultStoreTimeout.
	Timeout time.Duration
	// NewID generates record identifiers. Nil means random UUIDs.
	NewID func() string
	// Now is the clock used for bookkeeping columns. Nil means time.Now.
	Now func() time.Time
	// Logger receives warnings about unreadable rows. Nil means slog.Default.
	Logger *slog.Logger
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(cfg migration.SQLiteConfig, opts Options) (*Store, error) {
	pool, err := NewConnectionPool(cfg, opts.Timeout)
	if err != nil {
		return nil, err
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store{
		pool:             pool,
		Sessions:         NewSessionRecordRepository(pool, opts.NewID, opts.Now, opts.Logger),
		Appointments:     NewAppointmentRepository(pool, opts.Now),
		Users:            NewUserRepository(pool),
		Patients:         NewPatientRepository(pool),
		Encounters:       NewEncounterRepository(pool, opts.NewID, opts.Now),
		ProviderContexts: NewProviderContextRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(s.pool.DB()), migrationFiles, "migrations", logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Store) MigrationStatus(ctx context.Context, logger *slog.Logger) (migration.Status, error) {
	manager := migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(s.pool.DB()), migrationFiles, "migrations", logger)
	return manager.Status(ctx)
}

// Ping checks that the database answers within the store timeout.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// storedTimeLayouts lists the accepted column formats. Rows written by this
// package use the first; rows imported from the host calendar use the second,
// read as UTC.
var storedTimeLayouts = []string{time.RFC3339Nano, time.DateTime}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range storedTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
