package sentinel

import (
	"errors"
	"fmt"
)

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a unique key is already taken
// - ErrInvalidReference: a foreign key points at a missing row
// - ErrInUse: the row is still referenced by dependents
// - ErrInvalidState: entity in wrong state for requested operation (check constraint)
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInUse            = errors.New("in use")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnavailable      = errors.New("unavailable")
)

// ConstraintError carries the field behind a constraint failure so services
// can name it in client messages. It unwraps to one of the sentinels above.
type ConstraintError struct {
	Err        error
	Field      string
	Constraint string
}

func (e *ConstraintError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Field)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Conflict returns an ErrConflict naming the duplicated field.
func Conflict(field string) error {
	return &ConstraintError{Err: ErrConflict, Field: field}
}

// InvalidReference returns an ErrInvalidReference naming the dangling field.
func InvalidReference(field string) error {
	return &ConstraintError{Err: ErrInvalidReference, Field: field}
}

// FieldOf returns the field recorded on a ConstraintError in err's chain.
func FieldOf(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}
