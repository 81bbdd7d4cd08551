// Package upstream implements the HTTP client for the Oz authorization
// service: profile lookup, ticket reissue and client registry lookup.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ozgate/ozgate/pkg/oz"
)

const userAgent = "ozgate/1.0"

type Config struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// First-party application credentials for calls made on our own behalf
	// (client registry lookup).
	AppID  string `yaml:"app_id" validate:"required"`
	AppKey string `yaml:"app_key" validate:"required"`

	Timeout time.Duration `yaml:"timeout"`
}

// Client talks to the authorization service. It implements
// oz.AuthorizationAPI.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchProfile resolves the user profile with the ticket as credentials.
func (c *Client) FetchProfile(ctx context.Context, credentials *oz.Ticket) (*oz.Profile, error) {
	profile := new(oz.Profile)
	if err := c.call(ctx, http.MethodGet, "/profile", nil, credentials, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Reissue exchanges the ticket for a fresh one, optionally rescoped to
// another client.
func (c *Client) Reissue(ctx context.Context, opts oz.ReissueOptions, credentials *oz.Ticket) (*oz.Ticket, error) {
	ticket := new(oz.Ticket)
	if err := c.call(ctx, http.MethodPost, "/oz/reissue", opts, credentials, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// LookupClient fetches a registered application record by id using our own
// application credentials. Not-found is reported as oz.ErrClientUnknown so
// the handshake can render its own view for it.
func (c *Client) LookupClient(ctx context.Context, clientID string) (*oz.Client, error) {
	client := new(oz.Client)
	err := c.call(ctx, http.MethodGet, "/oz/app/"+clientID, nil, nil, client)
	if err != nil {
		var statusErr *oz.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, oz.ErrClientUnknown
		}
		return nil, err
	}
	return client, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any, credentials *oz.Ticket, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The signing algorithm is the upstream service's concern; this layer
	// only presents the credential identifiers.
	if credentials != nil {
		req.Header.Set("Authorization", fmt.Sprintf(`Oz id=%q, app=%q`, credentials.ID, credentials.App))
	} else {
		req.Header.Set("Authorization", fmt.Sprintf(`Oz app=%q, key=%q`, c.cfg.AppID, c.cfg.AppKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Debug("upstream returned non-success", "method", method, "path", path, "status", resp.StatusCode)
		return &oz.StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if len(data) == 0 {
		return fmt.Errorf("%w: empty response to %s %s", oz.ErrProtocolViolation, method, path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: unable to decode %s %s response: %v", oz.ErrProtocolViolation, method, path, err)
	}
	return nil
}

// errorMessage extracts the human-readable message from an upstream error
// payload, tolerating both {"message"} and {"error_description"} shapes.
func errorMessage(data []byte) string {
	var payload struct {
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Description
}
