// Package web is the HTTP surface: echo routes for the authorization
// handshake and the session endpoint, cookie-backed session storage, and
// the consent and error views.
package web

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ozgate/ozgate/pkg/oz"
	"github.com/ozgate/ozgate/pkg/ozflow"
	"github.com/ozgate/ozgate/pkg/session"
)

var (
	//go:embed *.html
	templatesFS embed.FS
)

const (
	contextKeyStore = "ozgate.store"
	contextKeyAuth  = "ozgate.auth"
)

type Config struct {
	// Product is the branding shown in views.
	Product string
	// LoginURI receives unauthenticated page requests, with the original
	// target appended as ?next=.
	LoginURI string
}

type Handler struct {
	cfg       Config
	flow      *ozflow.Flow
	validator *session.Validator
	codec     *CookieCodec
	crumbs    CrumbService

	consentTmpl *template.Template
	errorTmpl   *template.Template
}

func NewHandler(cfg Config, flow *ozflow.Flow, validator *session.Validator, codec *CookieCodec, crumbs CrumbService) *Handler {
	if cfg.LoginURI == "" {
		cfg.LoginURI = "/login"
	}
	return &Handler{
		cfg:         cfg,
		flow:        flow,
		validator:   validator,
		codec:       codec,
		crumbs:      crumbs,
		consentTmpl: template.Must(template.ParseFS(templatesFS, "consent.html", "layout.html")),
		errorTmpl:   template.Must(template.ParseFS(templatesFS, "error.html", "layout.html")),
	}
}

func ErrorLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			slog.Error("request failed", "error", err, "path", c.Path(), "remote_addr", c.RealIP())
		}
		return err
	}
}

func (h *Handler) MountRoutes(e *echo.Echo) {
	e.HTTPErrorHandler = h.errorPage

	g := e.Group("")
	g.Use(ErrorLogMiddleware)
	g.Use(h.withSession)
	g.GET("/oz/authorize", h.Ask)
	g.POST("/oz/authorize/answer", h.Answer, h.requireAuth)
	g.GET("/session", h.SessionTicket, h.requireAuth)
}

// withSession attaches the cookie store and, when the cookie holds a valid
// session, the authentication result. Authentication is "try"-level: an
// invalid session clears the cookie and the request proceeds anonymous;
// endpoints that need a user add requireAuth.
func (h *Handler) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		store := newCookieStore(h.codec, c)
		c.Set(contextKeyStore, store)

		if store.Ticket() != nil {
			result, err := h.validator.Validate(c.Request().Context(), store)
			if err != nil {
				if errors.Is(err, oz.ErrSessionInvalid) {
					slog.Debug("clearing invalid session", "error", err)
					store.ClearTicket()
				} else {
					slog.Error("session validation failed", "error", err)
				}
			} else {
				c.Set(contextKeyAuth, result)
			}
		}

		return next(c)
	}
}

func (h *Handler) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if AuthFrom(c) == nil {
			if c.Request().Method == http.MethodGet {
				next := url.QueryEscape(c.Request().RequestURI)
				return c.Redirect(http.StatusFound, h.cfg.LoginURI+"?next="+next)
			}
			return c.JSON(http.StatusUnauthorized, oz.Error{Code: "unauthorized", Description: "Authentication required"})
		}
		return next(c)
	}
}

// StoreFrom returns the request's session store.
func StoreFrom(c echo.Context) session.Store {
	store, _ := c.Get(contextKeyStore).(session.Store)
	return store
}

// AuthFrom returns the authentication result, or nil for an anonymous
// request.
func AuthFrom(c echo.Context) *session.AuthResult {
	result, _ := c.Get(contextKeyAuth).(*session.AuthResult)
	return result
}

// Ask handles GET /oz/authorize.
func (h *Handler) Ask(c echo.Context) error {
	var query ozflow.AskQuery
	if err := c.Bind(&query); err != nil {
		slog.Warn("unbindable authorization request", "error", err, "remote_addr", c.RealIP())
		return h.renderError(c, http.StatusBadRequest, "400", "sorry, the application that sent you here messed something up...")
	}

	result, err := h.flow.Ask(c.Request().Context(), StoreFrom(c), query)
	if err != nil {
		// No trusted redirect target exists on these paths; render, never
		// redirect, and keep upstream detail out of the response.
		if errors.Is(err, oz.ErrProtocolViolation) {
			slog.Warn("malformed authorization request", "error", err, "remote_addr", c.RealIP())
		} else {
			slog.Error("authorization ask failed", "error", err)
		}
		return h.renderError(c, http.StatusInternalServerError, "500", "something went wrong...")
	}

	switch {
	case result.Redirect != "":
		return c.Redirect(http.StatusFound, result.Redirect)
	case result.Error != nil:
		return h.renderError(c, http.StatusOK, result.Error.Code, result.Error.Message)
	default:
		crumb, err := h.crumbs.Issue()
		if err != nil {
			slog.Error("unable to issue consent crumb", "error", err)
			return h.renderError(c, http.StatusInternalServerError, "500", "something went wrong...")
		}
		data := h.viewContext(c)
		data["title"] = result.Consent.Title
		data["description"] = result.Consent.Description
		data["warning"] = result.Consent.Warning
		data["crumb"] = crumb
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(http.StatusOK)
		return h.consentTmpl.Execute(c.Response().Writer, data)
	}
}

// Answer handles POST /oz/authorize/answer.
func (h *Handler) Answer(c echo.Context) error {
	if err := h.crumbs.Redeem(c.FormValue("crumb")); err != nil {
		slog.Warn("consent crumb rejected", "error", err, "remote_addr", c.RealIP())
		return h.renderError(c, http.StatusForbidden, "403", "sorry, your request could not be verified...")
	}

	auth := AuthFrom(c)
	redirect, err := h.flow.Answer(c.Request().Context(), StoreFrom(c), auth.Ticket)
	if err != nil {
		slog.Error("authorization answer failed", "error", err)
		return h.renderError(c, http.StatusInternalServerError, "500", "something went wrong...")
	}
	return c.Redirect(http.StatusFound, redirect)
}

// SessionTicket handles GET /session.
func (h *Handler) SessionTicket(c echo.Context) error {
	auth := AuthFrom(c)
	ticket, err := h.flow.SessionTicket(c.Request().Context(), auth.Ticket)
	if err != nil {
		if errors.Is(err, oz.ErrRestrictedSession) {
			return c.JSON(http.StatusBadRequest, oz.Error{Code: "restricted_session", Description: "Restricted session"})
		}
		slog.Error("session ticket issuance failed", "error", err)
		return c.JSON(http.StatusInternalServerError, oz.Error{Code: "internal_error", Description: "Failed refresh"})
	}
	return c.JSON(http.StatusOK, ticket)
}

// errorPage renders uncaught errors as the branded error view.
func (h *Handler) errorPage(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
	}

	code, message := "500", "something went wrong..."
	if status == http.StatusNotFound {
		code, message = "404", "the page you were looking for was not found"
	}

	if renderErr := h.renderError(c, status, code, message); renderErr != nil {
		slog.Error("unable to render error page", "error", renderErr)
	}
}

func (h *Handler) renderError(c echo.Context, status int, code, message string) error {
	data := h.viewContext(c)
	data["code"] = code
	data["message"] = message
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return h.errorTmpl.Execute(c.Response().Writer, data)
}

// viewContext carries the defaults every view gets: branding and, when
// authenticated, the profile.
func (h *Handler) viewContext(c echo.Context) map[string]any {
	data := map[string]any{
		"product": h.cfg.Product,
	}
	if auth := AuthFrom(c); auth != nil {
		data["profile"] = auth.Profile
	}
	return data
}
