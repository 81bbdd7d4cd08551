// Package session holds the ticket lifecycle: per-request validation,
// transparent refresh against the authorization service, and the session
// store contract backing the cookie.
package session

import "github.com/ozgate/ozgate/pkg/oz"

// Store is the per-session persistence behind the cookie. The ticket slot
// and the pending-flow slot are deliberately distinct so consuming a
// handshake never touches the credential, and vice versa.
//
// Implementations are request-scoped; no locking across requests is
// expected of them.
type Store interface {
	// Ticket returns the stored ticket, or nil when the session is empty.
	Ticket() *oz.Ticket
	SetTicket(t *oz.Ticket) error
	ClearTicket()

	// PendingFlow returns the stashed handshake state, or nil.
	PendingFlow() *oz.PendingFlow
	SetPendingFlow(flow *oz.PendingFlow) error
	// TakePendingFlow reads and clears the slot in one step. A second take
	// sees an empty slot; a pending flow is redeemed at most once.
	TakePendingFlow() *oz.PendingFlow
}
