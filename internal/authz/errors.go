package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

var (
	// ErrRoleNotFound indicates the user has no base role on record. It is
	// deliberately distinct from a denial: callers treat it as a data
	// problem, not an authorization outcome.
	ErrRoleNotFound = errors.New("authz: role not found")

	// ErrStoreUnavailable wraps data-store failures during resolution.
	// Resolution fails closed on it.
	ErrStoreUnavailable = errors.New("authz: store unavailable")
)

// DeniedError is the expected outcome of a failed authorization check. It
// carries the missing permissions so callers can build a useful message.
type DeniedError struct {
	Missing []catalog.Permission
}

func (e *DeniedError) Error() string {
	names := make([]string, len(e.Missing))
	for i, p := range e.Missing {
		names[i] = string(p)
	}
	return "authz: denied, missing " + strings.Join(names, ", ")
}

// MisconfiguredError indicates a registry gap (unknown role set, missing
// field-policy table). It is a hard operator-facing failure, never
// interpreted as "no restriction".
type MisconfiguredError struct {
	Subject string
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("authz: misconfigured: %s", e.Subject)
}

// IsDenied reports whether err is an authorization denial.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}
