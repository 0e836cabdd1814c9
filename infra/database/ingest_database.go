// Package database provides PostgreSQL connectors for the pipeline.
package database

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"ingest_server/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rs/zerolog"
)

// RetryConfig controls connection retry behavior. The delay grows as
// delay^attempt seconds (2s, 4s, 8s with the defaults).
type RetryConfig struct {
	Attempts int
	DelaySec int
}

// DefaultRetryConfig returns the reference retry schedule.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{Attempts: 3, DelaySec: 2}
}

func (c *RetryConfig) delay(attempt int) time.Duration {
	return time.Duration(math.Pow(float64(c.DelaySec), float64(attempt))) * time.Second
}

// PostgresConfig holds pool configuration.
type PostgresConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPostgresConfig returns pool defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxConns:          25,
		MinConns:          5,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: 1 * time.Minute,
	}
}

// NewPostgres connects a pgx pool with retrying backoff. A nil pool
// with a non-nil error means the step that needed it is skipped, not
// that the whole run failed; callers decide.
func NewPostgres(ctx context.Context, databaseURL string, retry *RetryConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	return NewPostgresWithConfig(ctx, databaseURL, DefaultPostgresConfig(), retry, log)
}

func NewPostgresWithConfig(ctx context.Context, databaseURL string, cfg *PostgresConfig, retry *RetryConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = cfg.MaxConns
	config.MinConns = cfg.MinConns
	config.MaxConnLifetime = cfg.MaxConnLifetime
	config.MaxConnIdleTime = cfg.MaxConnIdleTime
	config.HealthCheckPeriod = cfg.HealthCheckPeriod

	// Simple protocol keeps prepared statements out of the way of the
	// sqlx connections sharing the same server.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	// Register the pgvector type on every connection.
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	// Slow and failed statements surface through the query tracer.
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   newQueryTracer(),
		LogLevel: tracelog.LogLevelWarn,
	}

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		pool, lastErr = pgxpool.NewWithConfig(ctx, config)
		if lastErr == nil {
			lastErr = pool.Ping(ctx)
			if lastErr == nil {
				return pool, nil
			}
			pool.Close()
		}
		if attempt == retry.Attempts {
			break
		}
		log.WithError(lastErr).Warn("postgres connection failed, retrying %d/%d", attempt, retry.Attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.delay(attempt)):
		}
	}

	log.WithError(lastErr).Error("postgres connection failed after %d attempts", retry.Attempts)
	return nil, lastErr
}

// newQueryTracer adapts a zerolog logger to the pgx tracelog
// interface. Only warnings and errors pass the trace level filter, so
// the tracer stays quiet on the happy path.
func newQueryTracer() tracelog.Logger {
	zl := zerolog.New(os.Stderr).With().Timestamp().Str("component", "pgx").Logger()
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var event *zerolog.Event
		switch level {
		case tracelog.LogLevelError:
			event = zl.Error()
		case tracelog.LogLevelWarn:
			event = zl.Warn()
		default:
			event = zl.Debug()
		}
		event.Fields(data).Msg(msg)
	})
}

// NewSQLX connects a sqlx handle over the pgx stdlib driver with the
// same retry schedule.
func NewSQLX(ctx context.Context, databaseURL string, retry *RetryConfig, log *logger.Logger) (*sqlx.DB, error) {
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	url := databaseURL
	if strings.Contains(url, "?") {
		url += "&default_query_exec_mode=simple_protocol"
	} else {
		url += "?default_query_exec_mode=simple_protocol"
	}

	var db *sqlx.DB
	var lastErr error
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		db, lastErr = sqlx.ConnectContext(ctx, "pgx", url)
		if lastErr == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(10)
			db.SetConnMaxLifetime(time.Hour)
			return db, nil
		}
		if attempt == retry.Attempts {
			break
		}
		log.WithError(lastErr).Warn("sqlx connection failed, retrying %d/%d", attempt, retry.Attempts)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.delay(attempt)):
		}
	}

	log.WithError(lastErr).Error("sqlx connection failed after %d attempts", retry.Attempts)
	return nil, lastErr
}
