// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/pkg/config"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	Driver string
	logger *logging.ChanneledLogger
}

// Options configures a new connection.
type Options struct {
	Driver          string
	DSN             string
	AuthToken       string // libsql only
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// OptionsFromConfig builds connection options from the loaded configuration.
func OptionsFromConfig() Options {
	return Options{
		Driver:          config.DBDriver,
		DSN:             config.DBDSN,
		AuthToken:       config.TursoAuthToken,
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(config.DBConnMaxIdleMinutes) * time.Minute,
	}
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(ctx context.Context, opts Options, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", opts.Driver)

	dsn, err := dataSourceName(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", opts.Driver)
		return nil, fmt.Errorf("failed to open %s connection: %w", opts.Driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	if err = db.PingContext(ctx); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", opts.Driver)
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", opts.Driver, err)
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", opts.Driver, "duration", duration)
	if duration > GetSlowQueryThreshold() {
		logger.LogSlowQuery("DATABASE_CONNECTION", duration)
	}

	return &DB{DB: db, Driver: opts.Driver, logger: logger}, nil
}

// dataSourceName appends the libsql auth token when one is configured.
func dataSourceName(opts Options) (string, error) {
	switch opts.Driver {
	case DriverSQLite:
		return opts.DSN, nil
	case DriverLibSQL:
		if opts.AuthToken == "" {
			return opts.DSN, nil
		}
		u, err := url.Parse(opts.DSN)
		if err != nil {
			return "", fmt.Errorf("invalid libsql url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", opts.AuthToken)
		u.RawQuery = q.Encode()
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// Logger returns the logger the connection was opened with.
func (db *DB) Logger() *logging.ChanneledLogger {
	return db.logger
}

// Status reports connectivity for health checks.
func (db *DB) Status(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// GetSlowQueryThreshold returns the configured slow query threshold
func GetSlowQueryThreshold() time.Duration {
	if config.SlowQueryThreshold <= 0 {
		return 500 * time.Millisecond
	}
	return config.SlowQueryThreshold
}

// ObserveQuery logs a query that ran past the slow-query threshold.
func (db *DB) ObserveQuery(query string, start time.Time) {
	duration := time.Since(start)
	if duration > GetSlowQueryThreshold() && db.logger != nil {
		db.logger.LogSlowQuery(query, duration)
	}
}
