package slskd

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by NewClient when no API key is configured.
var ErrMissingAPIKey = errors.New("slskd API key is required (set it in the config file or SLSKD_API_KEY)")

// NetworkError is a transient transport or server failure. Callers may
// retry; the search stabilization and transfer polling loops do.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("slskd: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError means the broker rejected our credentials. Every
// subsequent call would fail identically, so it is fatal to the batch.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("slskd: authentication rejected (HTTP %d)", e.Status)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
