package postgres

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"corretaje/pkg/platform/sentinel"
)

// PostgreSQL SQLSTATE codes surfaced by constraint failures.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// ConstraintFields maps constraint names to the request field they guard.
// Stores register their own names so conflicts can name the offending field.
type ConstraintFields map[string]string

// TranslateError converts driver constraint failures into sentinel errors.
// Unknown errors pass through unchanged.
func TranslateError(err error, fields ConstraintFields) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	field := fields[pqErr.Constraint]
	if field == "" {
		field = fieldFromConstraint(pqErr.Constraint)
	}

	switch string(pqErr.Code) {
	case codeUniqueViolation:
		return &sentinel.ConstraintError{Err: sentinel.ErrConflict, Field: field, Constraint: pqErr.Constraint}
	case codeForeignKeyViolation:
		// deletes that trip a FK mean the row is still referenced
		if strings.Contains(strings.ToLower(pqErr.Message), "still referenced") ||
			strings.Contains(strings.ToLower(pqErr.Detail), "is still referenced") {
			return &sentinel.ConstraintError{Err: sentinel.ErrInUse, Field: field, Constraint: pqErr.Constraint}
		}
		return &sentinel.ConstraintError{Err: sentinel.ErrInvalidReference, Field: field, Constraint: pqErr.Constraint}
	case codeCheckViolation, codeNotNullViolation:
		return &sentinel.ConstraintError{Err: sentinel.ErrInvalidState, Field: field, Constraint: pqErr.Constraint}
	}
	return err
}

// fieldFromConstraint derives a column name from conventional constraint
// names like "clientes_email_key" or "usuarios_broker_number_fkey".
func fieldFromConstraint(name string) string {
	for _, suffix := range []string{"_key", "_fkey", "_check"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok {
			if idx := strings.Index(trimmed, "_"); idx != -1 {
				return trimmed[idx+1:]
			}
			return trimmed
		}
	}
	return ""
}
