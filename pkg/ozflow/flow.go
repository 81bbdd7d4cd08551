// Package ozflow implements the Oz implicit-grant handshake: ask stashes a
// pending flow and produces the consent view model, answer consumes it and
// redirects the ticket to the client. Rendering and cookie transport live in
// pkg/web; this package only decides.
package ozflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/segmentio/ksuid"

	"github.com/ozgate/ozgate/pkg/oz"
	"github.com/ozgate/ozgate/pkg/session"
)

// Flow drives the handshake endpoints.
type Flow struct {
	api oz.AuthorizationAPI
	// viewClientID is the first-party client the plain session operation
	// issues tickets to.
	viewClientID string
	// landingURI is where an expired or absent handshake lands; it must
	// never look like a valid client interaction.
	landingURI string
}

func New(api oz.AuthorizationAPI, viewClientID, landingURI string) *Flow {
	if landingURI == "" {
		landingURI = "/"
	}
	return &Flow{api: api, viewClientID: viewClientID, landingURI: landingURI}
}

// AskQuery is the authorization request query string.
type AskQuery struct {
	ClientID     string `query:"client_id"`
	ResponseType string `query:"response_type"`
	RedirectURI  string `query:"redirect_uri"`
	State        string `query:"state"`
}

// ConsentPrompt is the view model for the consent screen. Warning is
// informational only: it flags that the redirect target came from the
// request rather than the client's registration, it gates nothing.
type ConsentPrompt struct {
	Title       string
	Description string
	Warning     bool
}

// ErrorView is a user-facing operator error rendered instead of a redirect,
// used while no trusted redirect target exists.
type ErrorView struct {
	Code    string
	Message string
}

// AskResult is the disposition of an ask call; exactly one field is set.
type AskResult struct {
	Consent  *ConsentPrompt
	Error    *ErrorView
	Redirect string
}

// Ask validates the requesting client and, on success, stashes the pending
// flow and produces the consent prompt. Until the client record has been
// verified there is no trusted redirect target, so early failures render a
// view; only a client-side protocol error after verification redirects back
// to the client.
func (f *Flow) Ask(ctx context.Context, store session.Store, q AskQuery) (*AskResult, error) {
	if q.ClientID == "" {
		return &AskResult{Error: &ErrorView{
			Code:    "500",
			Message: "sorry, the application that sent you here messed something up...",
		}}, nil
	}

	client, err := f.api.LookupClient(ctx, q.ClientID)
	if err != nil {
		if errors.Is(err, oz.ErrClientUnknown) {
			return &AskResult{Error: &ErrorView{
				Code:    "unknown",
				Message: "sorry, we can't find the application that sent you here...",
			}}, nil
		}
		return nil, fmt.Errorf("%w: client lookup: %v", oz.ErrUpstreamUnavailable, err)
	}

	// Exactly one redirect target: the pre-configured callback or the
	// caller-supplied redirect_uri. Both or neither is malformed at best.
	if client.Callback != "" && q.RedirectURI != "" {
		return nil, fmt.Errorf("%w: client %s request includes a redirection URI for a pre-configured callback client", oz.ErrProtocolViolation, client.ID)
	}
	if client.Callback == "" && q.RedirectURI == "" {
		return nil, fmt.Errorf("%w: client %s missing callback", oz.ErrProtocolViolation, client.ID)
	}

	redirection := client.Callback
	untrusted := false
	if redirection == "" {
		redirection = q.RedirectURI
		untrusted = true
	}

	// Only the implicit grant is supported. The redirect target is trusted
	// enough at this point to carry the protocol error back to the client.
	if q.ResponseType != "token" {
		params := url.Values{}
		params.Set("error", "invalid_request")
		params.Set("error_description", "Bad response_type parameter")
		if q.State != "" {
			params.Set("state", q.State)
		}
		return &AskResult{Redirect: redirection + "?" + params.Encode()}, nil
	}

	state := q.State
	if state == "" {
		state = ksuid.New().String()
	}

	if err := store.SetPendingFlow(&oz.PendingFlow{
		Client:      client,
		Redirection: redirection,
		State:       state,
	}); err != nil {
		return nil, fmt.Errorf("stashing pending flow: %w", err)
	}

	slog.Info("authorization asked", "client_id", client.ID, "untrusted", untrusted)

	return &AskResult{Consent: &ConsentPrompt{
		Title:       client.Title,
		Description: client.Description,
		Warning:     untrusted,
	}}, nil
}

// Answer completes the handshake. The pending flow is consumed before the
// upstream call is issued; an aborted request is not recoverable and the
// user restarts from ask. Returns the redirect URI with the ticket in the
// fragment, or the neutral landing URI when no flow is pending.
func (f *Flow) Answer(ctx context.Context, store session.Store, credentials *oz.Ticket) (string, error) {
	pending := store.TakePendingFlow()
	if pending == nil || pending.Client == nil {
		return f.landingURI, nil
	}

	ticket, err := f.reissueFor(ctx, pending.Client.ID, credentials)
	if err != nil {
		return "", err
	}

	if pending.State != "" {
		ticket.State = pending.State
	}

	return pending.Redirection + "#" + ticket.Fragment(), nil
}

// SessionTicket issues a ticket scoped to the first-party view client.
// Unlike a plain refresh, which tolerates and reports restriction, this
// operation guarantees the returned ticket is unrestricted.
func (f *Flow) SessionTicket(ctx context.Context, credentials *oz.Ticket) (*oz.Ticket, error) {
	ticket, err := f.reissueFor(ctx, f.viewClientID, credentials)
	if err != nil {
		return nil, err
	}
	if ticket.Ext.TOS < oz.MinimumTOS {
		return nil, oz.ErrRestrictedSession
	}
	return ticket, nil
}

func (f *Flow) reissueFor(ctx context.Context, clientID string, credentials *oz.Ticket) (*oz.Ticket, error) {
	opts := oz.ReissueOptions{IssueTo: clientID, Scope: []string{}}
	ticket, err := f.api.Reissue(ctx, opts, credentials)
	if err != nil {
		var statusErr *oz.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %s", oz.ErrRejected, statusErr.Message)
		}
		return nil, fmt.Errorf("%w: reissue: %v", oz.ErrUpstreamUnavailable, err)
	}
	if !ticket.Valid() {
		return nil, fmt.Errorf("%w: reissued ticket missing required fields", oz.ErrProtocolViolation)
	}
	return ticket, nil
}
