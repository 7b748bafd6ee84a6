package progress

import "fmt"

// MissingFieldError is returned when a record reaches its progress= line
// without every required field present in order.
type MissingFieldError struct {
	Field string // expected key
	Line  string // line found in its place, empty when the record ran out
}

func (e *MissingFieldError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("progress record missing field %q", e.Field)
	}
	return fmt.Sprintf("progress record missing field %q (got %q)", e.Field, e.Line)
}

// FieldError is returned when a required field is present but its value
// cannot be decoded.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("progress field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
