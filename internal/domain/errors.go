package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error kinds surfaced by the engine. Callers match them with errors.Is.
var (
	ErrSessionConflict = errors.New("an active session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidState    = errors.New("session is not in a valid state for this operation")
	ErrValidation      = errors.New("validation failed")
	ErrMigration       = errors.New("legacy record could not be migrated")
)

// SessionConflictError names the session that blocks a new one from starting.
type SessionConflictError struct {
	ActiveSessionID string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSessionConflict, e.ActiveSessionID)
}

func (e *SessionConflictError) Is(target error) bool {
	return target == ErrSessionConflict
}

// ValidationError reports every field that failed schema validation.
type ValidationError struct {
	Fields []string
	cause  error
}

func newValidationError(err error) *ValidationError {
	ve := &ValidationError{cause: err}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			ve.Fields = append(ve.Fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
	} else if err != nil {
		ve.Fields = append(ve.Fields, err.Error())
	}
	return ve
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// MigrationError describes one legacy record that failed to convert. These
// are collected into the migration result instead of being returned.
type MigrationError struct {
	Source string `bson:"source" json:"source"`
	Record string `bson:"record" json:"record"`
	Reason string `bson:"reason" json:"reason"`
}

func (e MigrationError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrMigration, e.Source, e.Record, e.Reason)
}

func (e MigrationError) Is(target error) bool {
	return target == ErrMigration
}

// NewValidationError reports fields that failed checks done outside the
// schema, e.g. on call parameters.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}
