package process

import "fmt"

// Error codes for executor operations.
const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeSpawnFailed    = "SPAWN_FAILED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidCommand = &Error{Code: ErrCodeInvalidCommand, Message: "invalid command"}
	ErrInvalidState   = &Error{Code: ErrCodeInvalidState, Message: "invalid executor state"}
	ErrSpawn          = &Error{Code: ErrCodeSpawnFailed, Message: "failed to spawn process"}
)

// Error represents an executor error with a code.
type Error struct {
	Code    string
	Message string
	Command string // attempted command, set for spawn and command errors
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Command != "" {
		msg += fmt.Sprintf(" %q", e.Command)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code, message, command string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Command: command,
		Cause:   cause,
	}
}

func stateError(op string, state State) *Error {
	return newError(ErrCodeInvalidState, fmt.Sprintf("%s not allowed while %s", op, state), "", nil)
}
