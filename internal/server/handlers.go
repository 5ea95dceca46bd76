package server

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
	"github.com/iSamBa/gym-manager-sub011/internal/gatekeeper"
	"github.com/iSamBa/gym-manager-sub011/internal/identity"
)

const rootPageHTML = `<!DOCTYPE html>
<html>
<head><title>Gym Manager</title></head>
<body>
  <h1>Gym Manager</h1>
  <p><a href="/dashboard">Open the dashboard</a> or <a href="{{.LoginPath}}">sign in</a>.</p>
</body>
</html>`

const loginPageHTML = `<!DOCTYPE html>
<html>
<head><title>Gym Manager - Sign In</title></head>
<body>
  <h1>Sign in</h1>
  {{if .Error}}<p style="color:#b00">{{.Error}}</p>{{end}}
  <form method="post" action="{{.LoginPath}}">
    <input type="hidden" name="redirect" value="{{.Redirect}}">
    <p><label>Username <input type="text" name="username" autofocus></label></p>
    <p><label>Password <input type="password" name="password"></label></p>
    <p><label><input type="checkbox" name="remember"> Keep me signed in</label></p>
    <p><button type="submit">Sign in</button></p>
  </form>
</body>
</html>`

const dashboardPageHTML = `<!DOCTYPE html>
<html>
<head><title>Gym Manager - Dashboard</title></head>
<body>
  <h1>Dashboard</h1>
  <p>Signed in as <strong>{{.Subject}}</strong>{{if .Remember}} (remembered){{end}}.</p>
  <p>Session expires {{.SessionExpiresAt.Format "15:04:05 MST"}} unless extended.</p>
  <form method="post" action="/api/session/extend"><button type="submit">Stay signed in</button></form>
  <form method="post" action="/logout"><button type="submit">Sign out</button></form>
</body>
</html>`

var (
	rootTmpl      = template.Must(template.New("root").Parse(rootPageHTML))
	loginTmpl     = template.Must(template.New("login").Parse(loginPageHTML))
	dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardPageHTML))
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
	Redirect string `json:"redirect"`
}

type sessionResponse struct {
	Subject          string    `json:"subject"`
	SessionID        string    `json:"session_id"`
	Remember         bool      `json:"remember"`
	SignedInAt       time.Time `json:"signed_in_at"`
	LastSeen         time.Time `json:"last_seen"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	TokenExpiresAt   time.Time `json:"token_expires_at"`
	SecondsRemaining int64     `json:"seconds_remaining"`

	// Idle policy for this session, so tabs arm their trackers with
	// the same numbers the server enforces.
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds"`
	WarningLeadSeconds int64 `json:"warning_lead_seconds"`
}

func (s *Server) cookieTemplate() gatekeeper.CookieTemplate {
	return gatekeeper.CookieTemplate{
		Name:     s.cfg.CookieName,
		Path:     "/",
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.renderPage(w, rootTmpl, map[string]any{"LoginPath": s.cfg.LoginPath})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if count, err := s.registry.Count(r.Context()); err == nil {
		payload["sessions"] = count
	}
	render.JSON(w, r, payload)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	message := ""
	switch r.URL.Query().Get("error") {
	case "invalid":
		message = "Invalid username or password."
	case "unavailable":
		message = "Sign-in is temporarily unavailable. Try again in a moment."
	}

	s.renderPage(w, loginTmpl, map[string]any{
		"LoginPath": s.cfg.LoginPath,
		"Redirect":  safeRedirectTarget(r.URL.Query().Get("redirect")),
		"Error":     message,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if wantsJSON(r) {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "malformed request body"})
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.Remember = r.PostFormValue("remember") != ""
		req.Redirect = r.PostFormValue("redirect")
	}

	grant, err := s.provider.SignInWithCredentials(r.Context(), identity.Credentials{
		Username: req.Username,
		Password: req.Password,
		Remember: req.Remember,
	})
	s.metrics.RecordSignIn(err == nil)
	if err != nil {
		reason := "unavailable"
		status := http.StatusServiceUnavailable
		if identity.HasCode(err, identity.ErrInvalidCredentials) {
			reason = "invalid"
			status = http.StatusUnauthorized
		} else {
			s.logger.Error().Err(err).Msg("Sign-in failed")
		}
		if wantsJSON(r) {
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": reason})
			return
		}
		s.redirectToLoginError(w, r, reason, req.Redirect)
		return
	}

	// Remember-me cookies persist until the session deadline; standard
	// ones die with the browser.
	var cookieDeadline time.Time
	if grant.Remember {
		cookieDeadline = grant.SessionExpiresAt
	}
	http.SetCookie(w, s.cookieTemplate().Bake(grant.Token, cookieDeadline))

	s.publishSignal(r.Context(), broadcast.KindLogin)
	s.logger.Info().
		Str("subject", grant.Subject).
		Str("session_id", grant.SessionID).
		Bool("remember", grant.Remember).
		Msg("Operator signed in")

	target := safeRedirectTarget(req.Redirect)
	if wantsJSON(r) {
		render.JSON(w, r, map[string]any{
			"status":     "signed_in",
			"subject":    grant.Subject,
			"session_id": grant.SessionID,
			"redirect":   target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := gatekeeper.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
		return
	}

	if err := s.provider.SignOut(r.Context(), principal.Token); err != nil {
		// The cookie still gets cleared; the sweeper will catch the
		// orphaned record.
		s.logger.Error().Err(err).Str("session_id", principal.SessionID).Msg("Sign-out failed")
	}

	http.SetCookie(w, s.cookieTemplate().Clear())
	s.publishSignal(r.Context(), broadcast.KindLogout)
	s.logger.Info().
		Str("subject", principal.Subject).
		Str("session_id", principal.SessionID).
		Msg("Operator signed out")

	if wantsJSON(r) {
		render.JSON(w, r, map[string]string{"status": "signed_out"})
		return
	}
	http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	principal, ok := gatekeeper.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, s.cfg.LoginPath, http.StatusFound)
		return
	}

	s.renderPage(w, dashboardTmpl, map[string]any{
		"Subject":          principal.Subject,
		"Remember":         principal.Remember,
		"SessionExpiresAt": principal.SessionExpiresAt,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := gatekeeper.PrincipalFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthenticated"})
		return
	}
	s.renderSessionState(w, r, principal)
}

// handleExtend reports the session state after an explicit keep-alive.
// The gate already slid the deadline while validating this request, so
// the endpoint's job is the metrics and the fresh deadline in the body.
func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	principal, ok := gatekeeper.PrincipalFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthenticated"})
		return
	}

	s.metrics.RecordSessionExtension()
	s.logger.Debug().
		Str("session_id", principal.SessionID).
		Msg("Session extended")

	if !wantsJSON(r) && r.Header.Get("Referer") != "" {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.renderSessionState(w, r, principal)
}

func (s *Server) renderSessionState(w http.ResponseWriter, r *http.Request, principal *gatekeeper.Principal) {
	rec, err := s.registry.Get(r.Context(), principal.SessionID)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "session state unavailable"})
		return
	}

	remaining := time.Until(rec.ExpiresAt)
	if remaining < 0 {
		remaining = 0
	}

	window := s.cfg.InactivityTimeout
	if rec.Remember {
		window = s.cfg.RememberTimeout
	}

	render.JSON(w, r, sessionResponse{
		Subject:            rec.Subject,
		SessionID:          rec.ID,
		Remember:           rec.Remember,
		SignedInAt:         rec.CreatedAt,
		LastSeen:           rec.LastSeen,
		SessionExpiresAt:   rec.ExpiresAt,
		TokenExpiresAt:     principal.TokenExpiresAt,
		SecondsRemaining:   int64(remaining.Seconds()),
		IdleTimeoutSeconds: int64(window.Seconds()),
		WarningLeadSeconds: int64(s.cfg.WarningLead.Seconds()),
	})
}

func (s *Server) renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Str("template", tmpl.Name()).Msg("Template rendering failed")
	}
}

func (s *Server) redirectToLoginError(w http.ResponseWriter, r *http.Request, reason, redirect string) {
	target := s.cfg.LoginPath + "?error=" + reason
	if redirect != "" {
		target += "&redirect=" + url.QueryEscape(redirect)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// publishSignal tells other tabs about a login or logout. Delivery is
// best effort; without a bus each tab just runs on its own timers.
func (s *Server) publishSignal(ctx context.Context, kind broadcast.Kind) {
	signal := broadcast.Signal{Kind: kind, EmittedAt: time.Now()}
	if err := s.bus.Publish(ctx, signal); err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Cross-tab signal not delivered")
		return
	}
	s.metrics.RecordSignal(string(kind), "sent")
}

// safeRedirectTarget confines post-login redirects to this site. Bad
// or missing targets land on the dashboard.
func safeRedirectTarget(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "/dashboard"
	}
	return raw
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
