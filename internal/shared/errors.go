package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Media errors surfaced to callers of a backend
	ErrNotFound               = fmt.Errorf("not found")
	ErrAuthenticationRequired = fmt.Errorf("authentication required")
	ErrInvalidCredentials     = fmt.Errorf("invalid credentials")
	ErrIO                     = fmt.Errorf("i/o error")
	ErrDeserialization        = fmt.Errorf("deserialization error")
	ErrNotImplemented         = fmt.Errorf("not implemented")
	ErrInvalidResponse        = fmt.Errorf("invalid response")

	// Configuration errors
	ErrMissingConfig    = fmt.Errorf("configuration not found")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
	ErrDatabaseNotFound = fmt.Errorf("database not found")

	// Provider errors
	ErrProviderExists  = fmt.Errorf("provider already exists")
	ErrInvalidProvider = fmt.Errorf("invalid provider")
	ErrServiceClosed   = fmt.Errorf("service closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

var mediaErrors = []error{
	ErrNotFound,
	ErrAuthenticationRequired,
	ErrInvalidCredentials,
	ErrDeserialization,
	ErrInvalidResponse,
	ErrNotImplemented,
	ErrIO,
}

// ErrorKind returns the media error sentinel err belongs to, or nil when err is not one of them.
//
// A failed login wraps both [ErrAuthenticationRequired] and [ErrInvalidCredentials]; it reports the former.
func ErrorKind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range mediaErrors {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// HTTPStatusError maps a non-2xx HTTP status code to its media error sentinel.
// It returns nil for 2xx codes.
func HTTPStatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrAuthenticationRequired
	case code == http.StatusForbidden:
		return ErrInvalidCredentials
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrIO
	}
}
