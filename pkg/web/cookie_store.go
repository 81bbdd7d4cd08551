package web

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ozgate/ozgate/pkg/oz"
	"github.com/ozgate/ozgate/pkg/session"
)

// cookieStore is a request-scoped session.Store over the two session
// cookies. Reads decode lazily once; writes go to the response immediately.
// Within a single request, TakePendingFlow is exact: the second take sees
// an empty slot. A racing request on the same cookie is indistinguishable
// from a replay and fails downstream when the upstream service declines the
// already-redeemed ticket.
type cookieStore struct {
	codec *CookieCodec
	c     echo.Context

	ticket        *oz.Ticket
	ticketLoaded  bool
	pending       *oz.PendingFlow
	pendingLoaded bool
}

var _ session.Store = (*cookieStore)(nil)

func newCookieStore(codec *CookieCodec, c echo.Context) *cookieStore {
	return &cookieStore{codec: codec, c: c}
}

func (s *cookieStore) Ticket() *oz.Ticket {
	if !s.ticketLoaded {
		s.ticketLoaded = true
		s.ticket = nil
		if value, ok := s.read(s.codec.ticketTemplate.Name); ok {
			ticket := new(oz.Ticket)
			if err := s.codec.open(value, ticket); err != nil {
				slog.Warn("discarding undecodable ticket cookie", "error", err)
			} else {
				s.ticket = ticket
			}
		}
	}
	return s.ticket
}

func (s *cookieStore) SetTicket(t *oz.Ticket) error {
	sealed, err := s.codec.seal(t)
	if err != nil {
		return err
	}
	s.write(s.codec.ticketTemplate, sealed)
	s.ticket = t
	s.ticketLoaded = true
	return nil
}

func (s *cookieStore) ClearTicket() {
	s.expire(s.codec.ticketTemplate)
	s.ticket = nil
	s.ticketLoaded = true
}

func (s *cookieStore) PendingFlow() *oz.PendingFlow {
	if !s.pendingLoaded {
		s.pendingLoaded = true
		s.pending = nil
		if value, ok := s.read(s.codec.pendingTemplate.Name); ok {
			flow := new(oz.PendingFlow)
			if err := s.codec.open(value, flow); err != nil {
				slog.Warn("discarding undecodable pending-flow cookie", "error", err)
			} else {
				s.pending = flow
			}
		}
	}
	return s.pending
}

func (s *cookieStore) SetPendingFlow(flow *oz.PendingFlow) error {
	sealed, err := s.codec.seal(flow)
	if err != nil {
		return err
	}
	s.write(s.codec.pendingTemplate, sealed)
	s.pending = flow
	s.pendingLoaded = true
	return nil
}

func (s *cookieStore) TakePendingFlow() *oz.PendingFlow {
	flow := s.PendingFlow()
	s.expire(s.codec.pendingTemplate)
	s.pending = nil
	return flow
}

func (s *cookieStore) read(name string) (string, bool) {
	cookie, err := s.c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (s *cookieStore) write(template *http.Cookie, value string) {
	cookie := *template
	cookie.Value = value
	s.c.SetCookie(&cookie)
}

func (s *cookieStore) expire(template *http.Cookie) {
	cookie := *template
	cookie.Value = ""
	cookie.MaxAge = -1
	s.c.SetCookie(&cookie)
}
