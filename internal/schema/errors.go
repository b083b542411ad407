package schema

import (
	"fmt"

	"github.com/JaimeStill/sift/pkg/fault"
)

var (
	// ErrInvalidSchema indicates a malformed category, field, table, or column.
	ErrInvalidSchema = fault.New(fault.InvalidInput, "invalid schema")
	// ErrReferentialViolation indicates a field or table pointing at an unknown category.
	ErrReferentialViolation = fault.New(fault.ReferentialViolation, "referential violation")
	// ErrEmptyConfiguration indicates a configuration with no fields and no tables.
	ErrEmptyConfiguration = fault.New(fault.EmptyConfiguration, "configuration has no fields or tables")
	// ErrInvalidResult indicates an extraction result that does not match the value model.
	ErrInvalidResult = fault.New(fault.InvalidInput, "invalid extraction result")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchema, fmt.Sprintf(format, args...))
}
