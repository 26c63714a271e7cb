package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the rental lifecycle. Handlers map these onto HTTP
// status codes in one place instead of guessing per call site.
var (
	ErrConcurrencyConflict = errors.New("rental was modified by another request, reload and retry")
	ErrExternalDependency  = errors.New("remote service unavailable")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidTransitionError is distinct from input validation: it depends on
// the stored state, not on the request shape.
type InvalidTransitionError struct {
	From RentalStatus
	To   RentalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition rental from %s to %s", e.From, e.To)
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}
