// Package errors re-exports github.com/cockroachdb/errors and defines the
// failure kinds every component reports through.
//
// A failure is created with its kind attached:
//
//	return errors.Mark(errors.New("Please fill in all required fields"), errors.ErrValidation)
//
// and rendered for the user with Message.
package errors

import (
	"fmt"
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	Mark        = crdb.Mark
	WithHint    = crdb.WithHint
	Is          = crdb.Is
	IsAny       = crdb.IsAny
	As          = crdb.As
	GetAllHints = crdb.GetAllHints
)

// Failure kinds.
var (
	ErrValidation  = New("validation failure")
	ErrAuthMissing = New("authentication missing")
	ErrNetwork     = New("network failure")
	ErrServer      = New("server error")
)

// ServerError is a non-2xx backend response.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// NewServerError builds a ServerError marked as ErrServer.
func NewServerError(status int, detail string) error {
	return Mark(&ServerError{Status: status, Detail: detail}, ErrServer)
}

// Validation builds a user-facing validation failure.
func Validation(msg string) error {
	return Mark(New(msg), ErrValidation)
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrValidation)
}

// AuthMissing is returned when no bearer token is available.
func AuthMissing() error {
	return Mark(New("Authentication required. Please sign in again."), ErrAuthMissing)
}

// Network wraps a transport failure.
func Network(err error, format string, args ...interface{}) error {
	return Mark(Wrapf(err, format, args...), ErrNetwork)
}

// Message renders err as the single line stored on a component's last error.
// A server detail is surfaced verbatim, without any wrapping prefixes.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var serverErr *ServerError
	if As(err, &serverErr) {
		return serverErr.Error()
	}
	return err.Error()
}

// Kind names the failure kind of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case Is(err, ErrValidation):
		return "validation"
	case Is(err, ErrAuthMissing):
		return "auth_missing"
	case Is(err, ErrNetwork):
		return "network"
	case Is(err, ErrServer):
		return "server"
	default:
		return "unknown"
	}
}
