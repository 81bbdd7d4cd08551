package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ozgate/ozgate/pkg/oz"
)

// Refresher reissues an expired or invalidated ticket against the
// authorization service and persists the result.
type Refresher struct {
	api oz.AuthorizationAPI
}

func NewRefresher(api oz.AuthorizationAPI) *Refresher {
	return &Refresher{api: api}
}

// Refresh exchanges current for a fresh ticket. The caller has already
// decided a refresh is needed. store may be nil when the refresh is not
// running on behalf of a live request; then nothing is written or cleared.
//
// Exactly one store write happens on success and none on any failure path,
// so a failed refresh never corrupts the existing session. A status-level
// rejection additionally clears the ticket slot: the upstream service has
// disowned the credential and retrying against it is futile.
func (r *Refresher) Refresh(ctx context.Context, store Store, current *oz.Ticket) (*oz.Ticket, error) {
	if current == nil {
		return nil, oz.ErrMissingCredential
	}

	ticket, err := r.api.Reissue(ctx, oz.ReissueOptions{}, current)
	if err != nil {
		var statusErr *oz.StatusError
		if errors.As(err, &statusErr) {
			if store != nil {
				store.ClearTicket()
			}
			slog.Info("reissue rejected", "status", statusErr.StatusCode, "message", statusErr.Message)
			return nil, fmt.Errorf("%w: %s", oz.ErrRejected, statusErr.Message)
		}
		if errors.Is(err, oz.ErrProtocolViolation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", oz.ErrUpstreamUnavailable, err)
	}

	if !ticket.Valid() {
		return nil, fmt.Errorf("%w: reissued ticket missing required fields", oz.ErrProtocolViolation)
	}

	ticket.Restriction = oz.RestrictionFor(ticket)

	if store != nil {
		if err := store.SetTicket(ticket); err != nil {
			return nil, fmt.Errorf("persisting refreshed ticket: %w", err)
		}
	}

	return ticket, nil
}
