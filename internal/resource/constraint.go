package resource

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wardenhq/warden/internal"
)

// Patterns that recover the offending column from a not-null violation,
// one per supported store dialect.
var notNullPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Column '([^']+)' cannot be null`),                // MySQL 1048
	regexp.MustCompile(`Field '([^']+)' doesn't have a default value`),   // MySQL 1364
	regexp.MustCompile(`NOT NULL constraint failed: .+\.([^\s]+)`),       // SQLite
	regexp.MustCompile(`null value in column "([^"]+)"`),                 // Postgres
}

// TranslateConstraintError converts a store-level constraint violation
// into a field-scoped validation error. When the offending column cannot
// be identified but the failure is recognizably a constraint violation,
// a generic validation error is returned. Any other store failure
// returns nil so the caller propagates it untouched.
func TranslateConstraintError(err error) *internal.AppError {
	if err == nil {
		return nil
	}
	message := err.Error()

	for _, pattern := range notNullPatterns {
		if m := pattern.FindStringSubmatch(message); m != nil {
			field := m[1]
			return internal.NewValidationFieldError(
				field,
				fmt.Sprintf("The %s field is required.", field),
				internal.ErrCodeValidationFailed)
		}
	}

	if strings.Contains(strings.ToLower(message), "constraint") {
		return internal.NewValidationError("Database error: Missing required fields.", internal.ErrCodeValidationFailed)
	}

	return nil
}
