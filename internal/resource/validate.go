package resource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wardenhq/warden/internal"
	"github.com/wardenhq/warden/internal/core/common/validation"
)

// UniqueCheckerAPI answers whether a value is unused in a column,
// ignoring the row identified by excludeID. The engine backs this with
// the resource's store.
type UniqueCheckerAPI interface {
	IsUnique(ctx context.Context, table, column string, value interface{}, excludeID int64) (bool, error)
}

// ValidatePayload runs the schema's declarative rules against a payload.
// On update, excludeID carries the current record's identifier so
// uniqueness rules skip the row being edited.
func ValidatePayload(ctx context.Context, schema *Schema, payload map[string]interface{}, excludeID int64, checker UniqueCheckerAPI) error {
	builder := validation.NewValidator()

	for i := range schema.Fields {
		field := &schema.Fields[i]
		value := payload[field.Key]
		fv := builder.Field(field.Key, value)

		for _, rule := range field.Rules {
			name, arg := splitRule(rule)

			switch name {
			case "required":
				// An empty password on update means "keep current", the
				// engine drops it before validation reaches here.
				fv.Required()
			case "email":
				fv.Email()
			case "min":
				if n, err := strconv.Atoi(arg); err == nil {
					fv.MinLength(n)
				}
			case "max":
				if n, err := strconv.Atoi(arg); err == nil {
					fv.MaxLength(n)
				}
			case "unique":
				table, column := splitUniqueArg(arg, schema.Table, field.Key)
				fv.Custom(uniqueValidator(ctx, checker, table, column, field, excludeID))
			}
		}
	}

	if err := builder.Validate(); err != nil {
		return err
	}
	return nil
}

// uniqueValidator builds the check for a "unique:table,column" rule.
// The excluded identifier is applied here, which is how an update
// tolerates the record keeping its own value.
func uniqueValidator(ctx context.Context, checker UniqueCheckerAPI, table, column string, field *Field, excludeID int64) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		if value == nil {
			return nil
		}
		if s, ok := value.(string); ok && s == "" {
			return nil
		}
		if checker == nil {
			return nil
		}

		unique, err := checker.IsUnique(ctx, table, column, value, excludeID)
		if err != nil {
			return internal.NewInternalError("failed to check uniqueness", err)
		}
		if !unique {
			return internal.NewValidationFieldError(
				field.Key,
				fmt.Sprintf("The %s has already been taken.", field.Key),
				internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

func splitRule(rule string) (name, arg string) {
	parts := strings.SplitN(rule, ":", 2)
	name = parts[0]
	if len(parts) == 2 {
		arg = parts[1]
	}
	return name, arg
}

// splitUniqueArg parses "table,column" with both parts optional,
// defaulting to the resource's own table and the field's key.
func splitUniqueArg(arg, defaultTable, defaultColumn string) (table, column string) {
	table, column = defaultTable, defaultColumn
	if arg == "" {
		return table, column
	}
	parts := strings.Split(arg, ",")
	if parts[0] != "" {
		table = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		column = parts[1]
	}
	return table, column
}
