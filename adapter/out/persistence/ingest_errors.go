// Package persistence provides PostgreSQL adapters implementing
// outbound ports.
package persistence

import (
	"errors"

	"ingest_server/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error classes
const (
	pgClassIntegrityViolation = "23"
	pgClassConnectionError    = "08"
)

// classifyError maps a driver error onto the pipeline taxonomy so
// services branch on kind, not SQLSTATE strings.
func classifyError(operation string, err error) *apperr.AppError {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case pgClassIntegrityViolation:
			return apperr.Integrity(operation, err).WithDetail("sqlstate", pgErr.Code)
		case pgClassConnectionError:
			return apperr.Connectivity("postgres", err).WithDetail("sqlstate", pgErr.Code)
		}
	}

	return apperr.Wrap(err, apperr.KindConnectivity, operation)
}
