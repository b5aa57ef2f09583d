package capture

import "errors"

var (
	// ErrPermissionDenied indicates the user or OS denied access to a
	// capture source. Devices wrap or return it so callers can offer a
	// retry affordance distinct from other failures.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrSessionActive indicates Start was called while a session is
	// already in progress.
	ErrSessionActive = errors.New("capture session already active")
	// ErrInvalidState indicates an operation not valid in the current state.
	ErrInvalidState = errors.New("operation not valid in current state")
)
