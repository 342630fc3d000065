package domain

import "errors"

// Stable error codes surfaced on the socket boundary.
const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeTooManyConnections   = "TOO_MANY_CONNECTIONS"
	ErrCodeWorkspaceJoinError   = "WORKSPACE_JOIN_ERROR"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

var (
	// ErrAuthenticationFailed is terminal for the connection: the caller must
	// close the socket after delivering the error.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTooManyConnections means the per-user connection cap was reached.
	// Terminal for the connection; no retry is attempted internally.
	ErrTooManyConnections = errors.New("too many connections")

	// ErrWorkspaceAccessDenied wraps an access denial or not-found from the
	// workspace authorization collaborator. Terminal for the join attempt
	// only; the connection stays open.
	ErrWorkspaceAccessDenied = errors.New("workspace access denied")
)

// ErrorCode maps a domain error to its boundary code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return ErrCodeAuthenticationFailed
	case errors.Is(err, ErrTooManyConnections):
		return ErrCodeTooManyConnections
	case errors.Is(err, ErrWorkspaceAccessDenied):
		return ErrCodeWorkspaceJoinError
	default:
		return ErrCodeInternal
	}
}
