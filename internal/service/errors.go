package service

import (
	"errors"
	"strings"
)

// Sentinel errors for the recoverable failure kinds handlers map to HTTP
// statuses.  Everything else bubbling out of a service is an
// infrastructure fault: logged with context, surfaced generically.
var (
	// ErrInvalidCredentials deliberately collapses every authentication
	// failure — unknown email, wrong password, deactivated account,
	// expired/forged/wrong-kind/revoked token — into one externally
	// indistinguishable kind.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is a valid principal with insufficient rights.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries every violated input rule so the handler can
// return the full list, not just the first.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}
