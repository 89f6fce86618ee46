// internal/protocol/errors.go
package protocol

import "fmt"

// ValidationError reports a missing argument or a malformed provider response
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// Missing builds a ValidationError for a required argument that was not given
func Missing(field string) *ValidationError {
	return &ValidationError{Field: field, Msg: "is required"}
}
