package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/persistence"
	"github.com/example/telehealth-gateway/internal/persistence/sqlite/migration"
)

// DefaultStoreTimeout bounds a single store call when none is configured.
const DefaultStoreTimeout = 3 * time.Second

// ConnectionPool owns the database handle and the per-call timeout.
type ConnectionPool struct {
	db      *sql.DB
	config  migration.SQLiteConfig
	timeout time.Duration
}

// NewConnectionPool opens a pool for config.
func NewConnectionPool(config migration.SQLiteConfig, timeout time.Duration) (*ConnectionPool, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &ConnectionPool{db: db, config: config, timeout: timeout}, nil
}

// DB returns the underlying handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping checks the connection within the store timeout.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	ctx, cancel := cp.bound(ctx)
	defer cancel()
	return cp.db.PingContext(ctx)
}

// bound derives a context that expires after the store timeout unless the
// caller's deadline is sooner.
func (cp *ConnectionPool) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= cp.timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cp.timeout)
}

// QueryHelper runs statements under the pool's timeout.
type QueryHelper struct {
	pool *ConnectionPool
}

// NewQueryHelper creates a helper for pool.
func NewQueryHelper(pool *ConnectionPool) *QueryHelper {
	return &QueryHelper{pool: pool}
}

// QueryRow scans a single row into dest.
func (qh *QueryHelper) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	ctx, cancel := qh.pool.bound(ctx)
	defer cancel()
	return qh.pool.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}

// Query runs query and hands each row to scan.
func (qh *QueryHelper) Query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	ctx, cancel := qh.pool.bound(ctx)
	defer cancel()

	rows, err := qh.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs a statement that returns no rows.
func (qh *QueryHelper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := qh.pool.bound(ctx)
	defer cancel()
	return qh.pool.db.ExecContext(ctx, query, args...)
}

// ErrorMapper translates driver errors into persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps err with the matching persistence sentinel.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(msg, "CHECK constraint failed", "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RetryConfig configures retries of writes that hit a busy database.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry policy used by the repositories.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  25 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries functions that fail with lock contention.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a helper with config.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config, mapper: NewErrorMapper()}
}

// WithRetry runs fn until it succeeds, fails permanently or ctx ends.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = rh.mapper.MapError(err)
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), "database is locked", "database table is locked", "SQLITE_BUSY")
}
