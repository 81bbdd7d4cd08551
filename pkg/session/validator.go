package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ozgate/ozgate/pkg/oz"
)

// DefaultView is attached to profiles whose upstream record omits one.
const DefaultView = "/view/"

// AuthResult is the outcome of a successful validation. It is threaded
// through request handling via the context and never mutated after
// construction.
type AuthResult struct {
	Ticket      *oz.Ticket
	Profile     *oz.Profile
	Restriction oz.Restriction
}

// Validator runs once per authenticated request, before handler logic.
type Validator struct {
	refresher *Refresher
	api       oz.AuthorizationAPI
	now       func() time.Time
}

func NewValidator(api oz.AuthorizationAPI, refresher *Refresher) *Validator {
	return &Validator{
		refresher: refresher,
		api:       api,
		now:       time.Now,
	}
}

// Validate checks the stored ticket, refreshes it when expired, and loads
// the profile with the resulting credentials. The refresh, when needed,
// completes and is persisted before the profile fetch is issued; a profile
// call never carries a known-expired ticket.
//
// Failure is "try"-level: an invalid session surfaces as
// oz.ErrSessionInvalid and the endpoint decides whether anonymous access is
// acceptable.
func (v *Validator) Validate(ctx context.Context, store Store) (*AuthResult, error) {
	ticket := store.Ticket()
	if ticket == nil {
		return nil, fmt.Errorf("%w: no session", oz.ErrSessionInvalid)
	}

	if ticket.Expired(v.now()) {
		refreshed, err := v.refresher.Refresh(ctx, store, ticket)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", oz.ErrSessionInvalid, err)
		}
		ticket = refreshed
	}

	profile, err := v.api.FetchProfile(ctx, ticket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oz.ErrProfileLoadFailed, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: empty profile payload", oz.ErrProfileLoadFailed)
	}
	if profile.View == "" {
		profile.View = DefaultView
	}

	return &AuthResult{
		Ticket:      ticket,
		Profile:     profile,
		Restriction: oz.RestrictionFor(ticket),
	}, nil
}

// WithClock overrides the validator's clock. Tests use it to pin expiry
// decisions.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}
