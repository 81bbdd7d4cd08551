package oz

import (
	"errors"
	"fmt"
)

// Failure classes of the ticket lifecycle. Callers match with errors.Is;
// wrapped detail is for logs, never for end users.
var (
	// ErrMissingCredential: nothing to refresh from, a session cannot be
	// bootstrapped out of thin air.
	ErrMissingCredential = errors.New("missing credential")
	// ErrUpstreamUnavailable: transport-level failure talking to the
	// authorization service, potentially transient.
	ErrUpstreamUnavailable = errors.New("authorization service unavailable")
	// ErrRejected: the authorization service explicitly declined. The stored
	// session must be cleared so we stop refreshing a disowned ticket.
	ErrRejected = errors.New("rejected by authorization service")
	// ErrProtocolViolation: malformed data from either side.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrProfileLoadFailed: a valid ticket that resolves no profile indicates
	// upstream inconsistency, not expiry.
	ErrProfileLoadFailed = errors.New("failed loading profile")
	// ErrSessionInvalid degrades the request to anonymous instead of
	// failing it.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrRestrictedSession: the caller must accept the current terms before
	// a fully scoped viewing ticket can be issued.
	ErrRestrictedSession = errors.New("restricted session")
	// ErrClientUnknown: client lookup returned not-found.
	ErrClientUnknown = errors.New("client unknown")
)

// StatusError is a non-success status from the authorization service,
// distinct from a transport failure.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// Error is the OAuth-style error payload used in redirects and JSON
// responses.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}
