package oz

import (
	"net/url"
	"strconv"
	"time"
)

// Ticket is the authorization credential issued by the upstream Oz service.
// Exp is a millisecond epoch timestamp. Restriction and State are computed
// locally and never come from upstream.
type Ticket struct {
	ID        string     `json:"id"`
	App       string     `json:"app,omitempty"`
	User      string     `json:"user,omitempty"`
	Key       string     `json:"key,omitempty"`
	Algorithm string     `json:"algorithm,omitempty"`
	Exp       int64      `json:"exp"`
	Scope     []string   `json:"scope,omitempty"`
	Ext       *Extension `json:"ext"`

	Restriction Restriction `json:"restriction,omitempty"`
	State       string      `json:"state,omitempty"`
}

// Extension carries the application-private portion of a ticket.
type Extension struct {
	TOS int `json:"tos"`
}

// Valid reports whether the ticket has the fields every upstream-issued
// ticket must carry. An upstream success response failing this check is a
// protocol violation, never something to accept silently.
func (t *Ticket) Valid() bool {
	return t != nil && t.ID != "" && t.Exp > 0 && t.Ext != nil
}

// Expired reports whether the ticket may still be presented as credentials.
func (t *Ticket) Expired(now time.Time) bool {
	return t == nil || t.Exp <= now.UnixMilli()
}

// Fragment serializes the ticket for delivery in a redirect URI fragment.
// Implicit-grant tickets go in the fragment, never the query string, so
// intermediate servers that log query strings never see them.
func (t *Ticket) Fragment() string {
	values := url.Values{}
	values.Set("id", t.ID)
	if t.App != "" {
		values.Set("app", t.App)
	}
	if t.User != "" {
		values.Set("user", t.User)
	}
	if t.Key != "" {
		values.Set("key", t.Key)
	}
	if t.Algorithm != "" {
		values.Set("algorithm", t.Algorithm)
	}
	values.Set("exp", strconv.FormatInt(t.Exp, 10))
	for _, s := range t.Scope {
		values.Add("scope", s)
	}
	if t.State != "" {
		values.Set("state", t.State)
	}
	return values.Encode()
}

// Profile is the user identity resolved per request with the current ticket
// as credentials. It is never persisted across requests.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"name,omitempty"`
	View        string `json:"view,omitempty"`
}

// Client is a registered third-party application. Exactly one of a
// pre-configured Callback or a caller-supplied redirect URI identifies the
// redirect target of a handshake; a client with no Callback is untrusted
// because the target came from the request itself.
type Client struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Callback    string `json:"callback,omitempty"`
}

// PendingFlow is the handshake state created by ask and consumed exactly
// once by answer.
type PendingFlow struct {
	Client      *Client `json:"client"`
	Redirection string  `json:"redirection"`
	State       string  `json:"state,omitempty"`
}
