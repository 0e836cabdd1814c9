// Package apperr defines the typed error taxonomy of the ingestion
// pipeline. Callers branch on Kind instead of matching log strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	// KindConnectivity covers unreachable databases, stores, and providers.
	KindConnectivity Kind = "CONNECTIVITY"
	// KindValidation covers rejected inputs: wrong file types, empty
	// files, unmapped extensions. Always a skip, never a batch failure.
	KindValidation Kind = "VALIDATION"
	// KindIntegrity covers constraint violations and partial writes.
	KindIntegrity Kind = "INTEGRITY"
	// KindAuth covers token exchange and credential failures. Aborts
	// the entire run for the affected user.
	KindAuth Kind = "AUTH"
	// KindExternal covers provider errors and upstream schema drift.
	KindExternal Kind = "EXTERNAL"
)

// AppError represents a structured pipeline error.
type AppError struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Constructor functions

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Connectivity(target string, err error) *AppError {
	return &AppError{
		Kind:    KindConnectivity,
		Message: fmt.Sprintf("cannot reach %s", target),
		Details: map[string]any{"target": target},
		Err:     err,
	}
}

func Validation(reason string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: reason,
	}
}

func Integrity(operation string, err error) *AppError {
	return &AppError{
		Kind:    KindIntegrity,
		Message: fmt.Sprintf("integrity failure during %s", operation),
		Err:     err,
	}
}

func Auth(message string, err error) *AppError {
	return &AppError{
		Kind:    KindAuth,
		Message: message,
		Err:     err,
	}
}

func External(service string, err error) *AppError {
	return &AppError{
		Kind:    KindExternal,
		Message: fmt.Sprintf("external service error: %s", service),
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Helper functions

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
