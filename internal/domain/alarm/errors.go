package alarm

import "errors"

var (
	// ErrPermissionDenied is returned when the remote system rejects the
	// credentials or the session token.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrServiceUnavailable is returned for any other remote fault.
	ErrServiceUnavailable = errors.New("service unavailable")
)
