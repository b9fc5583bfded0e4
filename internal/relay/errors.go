package relay

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/moti-app/moti-proxy/internal/adapter/router"
)

// Wire error codes returned to clients.
const (
	CodeMessageRequired     = "message_required"
	CodeEmptyMessage        = "empty_message"
	CodeUnsupportedProvider = "unsupported_provider"
	CodeInvalidMemory       = "invalid_memory"
	CodeProxyError          = "proxy_error"
)

var (
	// ErrMessageRequired is returned when the body has no string message field.
	ErrMessageRequired = errors.New("relay: message required")
	// ErrEmptyMessage is returned when the message is blank after trimming.
	ErrEmptyMessage = errors.New("relay: message is empty")
)

// Error is a failure ready to be written to the client.
type Error struct {
	Code   string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// MissingKeyCode returns the wire code for a provider without credentials.
func MissingKeyCode(provider string) string {
	return "missing_" + provider + "_key"
}

// AsError maps err to the client-facing Error. Unknown failures become
// proxy_error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr
	}

	var credErr *router.CredentialError
	switch {
	case errors.Is(err, ErrMessageRequired):
		return &Error{Code: CodeMessageRequired, Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrEmptyMessage):
		return &Error{Code: CodeEmptyMessage, Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, router.ErrUnsupportedProvider):
		return &Error{Code: CodeUnsupportedProvider, Status: http.StatusBadRequest, Err: err}
	case errors.As(err, &credErr):
		return &Error{Code: MissingKeyCode(credErr.Provider), Status: http.StatusInternalServerError, Err: err}
	default:
		return &Error{Code: CodeProxyError, Status: http.StatusInternalServerError, Err: err}
	}
}
