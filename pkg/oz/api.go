package oz

import "context"

// ReissueOptions scope a reissue call. An empty IssueTo reissues for the
// current holder; a non-empty one rescopes the ticket to that client.
type ReissueOptions struct {
	IssueTo string   `json:"issueTo,omitempty"`
	Scope   []string `json:"scope,omitempty"`
}

// AuthorizationAPI is the remote authorization service. Every call is a
// single request/response exchange with no implicit retry; retrying a
// status-level rejection could mint a ticket for the wrong restriction state.
//
// Non-success statuses surface as *StatusError, transport failures as any
// other error. LookupClient reports not-found as ErrClientUnknown.
type AuthorizationAPI interface {
	FetchProfile(ctx context.Context, credentials *Ticket) (*Profile, error)
	Reissue(ctx context.Context, opts ReissueOptions, credentials *Ticket) (*Ticket, error)
	LookupClient(ctx context.Context, clientID string) (*Client, error)
}
