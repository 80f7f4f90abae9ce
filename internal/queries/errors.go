package queries

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports missing or malformed input on a single request.
// It is never fatal; the request is rejected and the caller may retry.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: missing or invalid %s", strings.Join(e.Fields, ", "))
}

// NotFoundError reports an unresolvable entity id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func invalid(fields ...string) error {
	return &ValidationError{Fields: fields}
}
