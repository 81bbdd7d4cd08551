package ozflow

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozgate/ozgate/pkg/oz"
	"github.com/ozgate/ozgate/pkg/session"
)

type fakeAPI struct {
	client    *oz.Client
	lookupErr error

	reissued     *oz.Ticket
	reissueErr   error
	reissueCalls int
	lastOpts     oz.ReissueOptions
}

func (f *fakeAPI) FetchProfile(ctx context.Context, credentials *oz.Ticket) (*oz.Profile, error) {
	return nil, errors.New("not used")
}

func (f *fakeAPI) Reissue(ctx context.Context, opts oz.ReissueOptions, credentials *oz.Ticket) (*oz.Ticket, error) {
	f.reissueCalls++
	f.lastOpts = opts
	if f.reissueErr != nil {
		return nil, f.reissueErr
	}
	ticket := *f.reissued
	return &ticket, nil
}

func (f *fakeAPI) LookupClient(ctx context.Context, clientID string) (*oz.Client, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.client, nil
}

func issuedTicket(app string) *oz.Ticket {
	return &oz.Ticket{
		ID:  "issued",
		App: app,
		Exp: time.Now().Add(time.Hour).UnixMilli(),
		Ext: &oz.Extension{TOS: oz.MinimumTOS},
	}
}

func userTicket() *oz.Ticket {
	return &oz.Ticket{
		ID:   "user-ticket",
		User: "u1",
		Exp:  time.Now().Add(time.Hour).UnixMilli(),
		Ext:  &oz.Extension{TOS: oz.MinimumTOS},
	}
}

func TestAskMissingClientID(t *testing.T) {
	flow := New(&fakeAPI{}, "view-client", "/")
	store := session.NewMemoryStore()

	result, err := flow.Ask(context.Background(), store, AskQuery{ResponseType: "token"})
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, "500", result.Error.Code)
	assert.Empty(t, result.Redirect, "no trusted redirect target exists yet")
	assert.Nil(t, store.PendingFlow())
}

func TestAskUnknownClient(t *testing.T) {
	flow := New(&fakeAPI{lookupErr: oz.ErrClientUnknown}, "view-client", "/")

	result, err := flow.Ask(context.Background(), session.NewMemoryStore(), AskQuery{ClientID: "ghost", ResponseType: "token"})
	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, "unknown", result.Error.Code)
}

func TestAskLookupFailure(t *testing.T) {
	flow := New(&fakeAPI{lookupErr: errors.New("connection refused")}, "view-client", "/")

	_, err := flow.Ask(context.Background(), session.NewMemoryStore(), AskQuery{ClientID: "c1", ResponseType: "token"})
	assert.ErrorIs(t, err, oz.ErrUpstreamUnavailable)
}

func TestAskCallbackRedirectURIConflict(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c1", Callback: "https://app.example/cb"}}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	_, err := flow.Ask(context.Background(), store, AskQuery{
		ClientID:     "c1",
		ResponseType: "token",
		RedirectURI:  "https://evil.example/cb",
	})
	assert.ErrorIs(t, err, oz.ErrProtocolViolation)
	assert.Nil(t, store.PendingFlow(), "a malformed request must not stash a flow")
}

func TestAskMissingRedirectTarget(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c1"}}
	flow := New(api, "view-client", "/")

	_, err := flow.Ask(context.Background(), session.NewMemoryStore(), AskQuery{ClientID: "c1", ResponseType: "token"})
	assert.ErrorIs(t, err, oz.ErrProtocolViolation)
}

func TestAskBadResponseTypeRedirectsWithError(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c1", Callback: "https://app.example/cb"}}
	flow := New(api, "view-client", "/")

	result, err := flow.Ask(context.Background(), session.NewMemoryStore(), AskQuery{
		ClientID:     "c1",
		ResponseType: "code",
		State:        "abc",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Redirect)

	redirect, parseErr := url.Parse(result.Redirect)
	require.NoError(t, parseErr)
	assert.Equal(t, "https://app.example/cb", redirect.Scheme+"://"+redirect.Host+redirect.Path)
	assert.Equal(t, "invalid_request", redirect.Query().Get("error"))
	assert.Equal(t, "abc", redirect.Query().Get("state"))
}

func TestAskStashesPendingFlow(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c1", Title: "App One", Description: "does things", Callback: "https://app.example/cb"}}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	result, err := flow.Ask(context.Background(), store, AskQuery{ClientID: "c1", ResponseType: "token", State: "xyz"})
	require.NoError(t, err)
	require.NotNil(t, result.Consent)
	assert.Equal(t, "App One", result.Consent.Title)
	assert.False(t, result.Consent.Warning, "pre-configured callback client is trusted")

	pending := store.PendingFlow()
	require.NotNil(t, pending)
	assert.Equal(t, "c1", pending.Client.ID)
	assert.Equal(t, "https://app.example/cb", pending.Redirection)
	assert.Equal(t, "xyz", pending.State)
}

func TestAskUntrustedClientWarning(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c2", Title: "Drifter"}}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	result, err := flow.Ask(context.Background(), store, AskQuery{
		ClientID:     "c2",
		ResponseType: "token",
		RedirectURI:  "https://caller.example/cb",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Consent)
	assert.True(t, result.Consent.Warning)
	assert.Equal(t, "https://caller.example/cb", store.PendingFlow().Redirection)
}

func TestAskDerivesStateWhenAbsent(t *testing.T) {
	api := &fakeAPI{client: &oz.Client{ID: "c1", Callback: "https://app.example/cb"}}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	_, err := flow.Ask(context.Background(), store, AskQuery{ClientID: "c1", ResponseType: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, store.PendingFlow().State)
}

func TestAnswerWithoutPendingFlow(t *testing.T) {
	api := &fakeAPI{}
	flow := New(api, "view-client", "/")

	redirect, err := flow.Answer(context.Background(), session.NewMemoryStore(), userTicket())
	require.NoError(t, err)
	assert.Equal(t, "/", redirect)
	assert.Zero(t, api.reissueCalls, "an expired flow performs zero upstream calls")
}

func TestAnswerRoundTrip(t *testing.T) {
	api := &fakeAPI{
		client:   &oz.Client{ID: "c1", Callback: "https://app.example/cb"},
		reissued: issuedTicket("c1"),
	}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	_, err := flow.Ask(context.Background(), store, AskQuery{ClientID: "c1", ResponseType: "token", State: "xyz"})
	require.NoError(t, err)

	redirect, err := flow.Answer(context.Background(), store, userTicket())
	require.NoError(t, err)

	assert.Equal(t, "c1", api.lastOpts.IssueTo)
	assert.Empty(t, api.lastOpts.Scope)

	base, fragment, found := strings.Cut(redirect, "#")
	require.True(t, found, "ticket travels in the fragment, never the query string")
	assert.Equal(t, "https://app.example/cb", base)

	values, parseErr := url.ParseQuery(fragment)
	require.NoError(t, parseErr)
	assert.Equal(t, "issued", values.Get("id"))
	assert.Equal(t, "xyz", values.Get("state"))

	// The flow is consumed: a second answer lands on the neutral location.
	redirect, err = flow.Answer(context.Background(), store, userTicket())
	require.NoError(t, err)
	assert.Equal(t, "/", redirect)
	assert.Equal(t, 1, api.reissueCalls)
}

func TestAnswerConsumesFlowBeforeUpstreamCall(t *testing.T) {
	api := &fakeAPI{
		client:     &oz.Client{ID: "c1", Callback: "https://app.example/cb"},
		reissueErr: errors.New("connection reset"),
	}
	flow := New(api, "view-client", "/")
	store := session.NewMemoryStore()

	_, err := flow.Ask(context.Background(), store, AskQuery{ClientID: "c1", ResponseType: "token"})
	require.NoError(t, err)

	_, err = flow.Answer(context.Background(), store, userTicket())
	assert.ErrorIs(t, err, oz.ErrUpstreamUnavailable)
	assert.Nil(t, store.PendingFlow(), "an aborted answer is not recoverable")
}

func TestSessionTicket(t *testing.T) {
	api := &fakeAPI{reissued: issuedTicket("view-client")}
	flow := New(api, "view-client", "/")

	ticket, err := flow.SessionTicket(context.Background(), userTicket())
	require.NoError(t, err)
	assert.Equal(t, "view-client", api.lastOpts.IssueTo)
	assert.Empty(t, api.lastOpts.Scope)
	assert.Equal(t, "issued", ticket.ID)
}

func TestSessionTicketRestricted(t *testing.T) {
	restricted := issuedTicket("view-client")
	restricted.Ext.TOS = oz.MinimumTOS - 1

	api := &fakeAPI{reissued: restricted}
	flow := New(api, "view-client", "/")

	_, err := flow.SessionTicket(context.Background(), userTicket())
	assert.ErrorIs(t, err, oz.ErrRestrictedSession)
}

func TestSessionTicketRejected(t *testing.T) {
	api := &fakeAPI{reissueErr: &oz.StatusError{StatusCode: 403, Message: "denied"}}
	flow := New(api, "view-client", "/")

	_, err := flow.SessionTicket(context.Background(), userTicket())
	assert.ErrorIs(t, err, oz.ErrRejected)
}
