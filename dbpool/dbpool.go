// Package dbpool provides a unified database connection manager that hides
// engine-specific details (SQLite, MySQL, Snowflake) behind one Open call and
// handles retry logic and connection pool settings.
//
// All code that needs a *sql.DB should go through DBManager instead of calling
// sql.Open directly. This gives us a single place to:
//   - switch between the supported engines
//   - add retry/backoff for lock contention and flaky networks
//   - enforce connection pool settings
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Engine identifies the database engine to use.
type Engine string

const (
	EngineSQLite    Engine = "sqlite"
	EngineMySQL     Engine = "mysql"
	EngineSnowflake Engine = "snowflake"
)

// ParseEngine maps a configuration value onto an Engine.
func ParseEngine(name string) (Engine, error) {
	switch Engine(name) {
	case EngineSQLite, EngineMySQL, EngineSnowflake:
		return Engine(name), nil
	case "sqlite3":
		return EngineSQLite, nil
	default:
		return "", fmt.Errorf("dbpool: unsupported engine %q", name)
	}
}

// AccessMode controls whether the connection is read-only or read-write.
type AccessMode int

const (
	ModeReadWrite AccessMode = iota
	ModeReadOnly
)

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	// Engine to use. Defaults to the manager's engine if empty.
	Engine Engine
	// Path is the file path for SQLite. For MySQL and Snowflake this is the DSN.
	Path string
	// Mode controls read-only vs read-write access.
	Mode AccessMode
	// MaxRetries overrides the default retry count (0 = use default).
	MaxRetries int
	// RetryBaseMs overrides the base retry interval in milliseconds (0 = use default).
	RetryBaseMs int
}

// Logger is a simple logging function signature.
type Logger func(string)

// DBManager is the central connection manager.
type DBManager struct {
	logger Logger
	engine Engine // default engine for the application
}

// New creates a new DBManager with the given default engine and logger.
func New(defaultEngine Engine, logger Logger) *DBManager {
	if logger == nil {
		logger = func(string) {}
	}
	return &DBManager{
		engine: defaultEngine,
		logger: logger,
	}
}

// DefaultEngine returns the manager's default engine.
func (m *DBManager) DefaultEngine() Engine {
	return m.engine
}

// Open opens a database connection with the given options and verifies it
// with a ping, retrying with linear backoff.
func (m *DBManager) Open(ctx context.Context, opts OpenOptions) (*sql.DB, error) {
	eng := opts.Engine
	if eng == "" {
		eng = m.engine
	}

	switch eng {
	case EngineSQLite:
		return m.openSQLite(ctx, opts)
	case EngineMySQL:
		return m.openMySQL(ctx, opts)
	case EngineSnowflake:
		return m.openSnowflake(ctx, opts)
	default:
		return nil, fmt.Errorf("dbpool: unsupported engine %q", eng)
	}
}

// OpenReadOnly is a convenience wrapper for read-only access.
func (m *DBManager) OpenReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	return m.Open(ctx, OpenOptions{Path: path, Mode: ModeReadOnly})
}

// OpenWritable is a convenience wrapper for read-write access.
func (m *DBManager) OpenWritable(ctx context.Context, path string) (*sql.DB, error) {
	return m.Open(ctx, OpenOptions{Path: path, Mode: ModeReadWrite})
}

// configureFilePool sets connection pool parameters that ensure file locks are
// released immediately on Close().
func configureFilePool(db *sql.DB) {
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(1)
}

// configureNetworkPool keeps a small warm pool for server engines.
func configureNetworkPool(db *sql.DB) {
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
}

// retryParams returns (maxRetries, baseMs) from opts or defaults.
func retryParams(opts OpenOptions) (int, int) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 8
	}
	baseMs := opts.RetryBaseMs
	if baseMs <= 0 {
		baseMs = 400
	}
	return maxRetries, baseMs
}

// openWithRetry runs sql.Open + configure + ping until it succeeds, the
// retries are exhausted, or ctx is done.
func (m *DBManager) openWithRetry(ctx context.Context, label, driver, dsn string, opts OpenOptions, configure func(*sql.DB)) (*sql.DB, error) {
	maxRetries, baseMs := retryParams(opts)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open(driver, dsn)
		if err == nil {
			configure(db)
			err = db.PingContext(ctx)
			if err != nil {
				db.Close()
			}
		}
		if err == nil {
			return db, nil
		}

		lastErr = err
		m.logger(fmt.Sprintf("[dbpool] %s attempt %d/%d failed: %v", label, i+1, maxRetries, err))
		if i+1 < maxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("dbpool: open %s cancelled: %w", label, ctx.Err())
			case <-time.After(time.Duration(baseMs*(i+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("dbpool: failed to open %s after %d retries: %w", label, maxRetries, lastErr)
}
