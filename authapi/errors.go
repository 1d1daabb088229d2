package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidResponse indicates a response that could not be decoded or failed
	// schema validation.
	ErrInvalidResponse = errors.New("invalid auth response")
	// ErrInvalidRequest indicates a request that failed validation before being sent.
	ErrInvalidRequest = errors.New("invalid auth request")
)

// StatusError is a non-success status from an auth endpoint. Code is the envelope status
// when the body carried one, otherwise the HTTP status.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authapi %s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("authapi %s: status %d: %s", e.Op, e.Code, e.Message)
}

// Unauthorized reports whether the status means the credential is no longer accepted.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsUnauthorized reports whether err carries a 401 or 403 [*StatusError].
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}
