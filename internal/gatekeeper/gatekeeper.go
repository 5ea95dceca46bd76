package gatekeeper

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/identity"
)

// Outcome labels reported through the DecisionHook for every gated
// request.
const (
	OutcomePublic       = "public"
	OutcomeGranted      = "granted"
	OutcomeRotated      = "rotated"
	OutcomeMissingToken = "missing_token"
	OutcomeRejected     = "rejected"
	OutcomeTimeout      = "timeout"
	OutcomeError        = "error"
)

// DecisionHook observes gate outcomes. The server wires it to metrics;
// nil disables reporting.
type DecisionHook func(outcome string)

// Config contains configuration for the gatekeeper
type Config struct {
	// LoginPath is where unauthenticated browsers are sent. It is
	// always treated as public.
	LoginPath string

	// PublicPaths are served without validation. Patterns ending in "/"
	// match as prefixes, others exactly.
	PublicPaths []string

	// RedirectParam is the query parameter carrying the originally
	// requested path on the login redirect (default: "redirect").
	RedirectParam string

	// Cookie is the session cookie shape.
	Cookie CookieTemplate

	// ValidateTimeout bounds each identity check. A check that outruns
	// it counts as failed for this request; there is no retry.
	ValidateTimeout time.Duration

	// OnDecision observes gate outcomes.
	OnDecision DecisionHook
}

// DefaultConfig returns default gatekeeper configuration
func DefaultConfig() Config {
	return Config{
		LoginPath:       "/login",
		PublicPaths:     []string{"/", "/healthz", "/metrics", "/static/"},
		RedirectParam:   "redirect",
		Cookie:          DefaultCookieTemplate(),
		ValidateTimeout: 5 * time.Second,
	}
}

// Principal is the authenticated caller attached to request context.
type Principal struct {
	Subject   string
	SessionID string
	Remember  bool
	// Token is the token downstream handlers should act on. After a
	// rotation this is the refreshed token, already queued on the
	// response cookie.
	Token            string
	TokenExpiresAt   time.Time
	SessionExpiresAt time.Time
}

// contextKey for storing the principal in request context
type principalContextKey string

const (
	PrincipalContextKey principalContextKey = "principal"
)

// PrincipalFromContext retrieves the authenticated principal from
// request context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return principal, ok
}

// Gatekeeper fronts every request: public paths pass straight through,
// everything else needs a session cookie that validates server side.
// Nothing is cached between requests; each request is checked against
// the registry on its own.
type Gatekeeper struct {
	provider identity.Provider
	config   Config
	matcher  *PublicMatcher
	logger   zerolog.Logger
	report   DecisionHook
}

// New creates a gatekeeper around an identity provider
func New(provider identity.Provider, config Config, logger zerolog.Logger) (*Gatekeeper, error) {
	if provider == nil {
		return nil, errors.New("gatekeeper: identity provider is required")
	}
	if !strings.HasPrefix(config.LoginPath, "/") {
		return nil, errors.New("gatekeeper: login path must start with /")
	}
	if config.Cookie.Name == "" {
		config.Cookie = DefaultCookieTemplate()
	}
	if config.RedirectParam == "" {
		config.RedirectParam = "redirect"
	}
	if config.ValidateTimeout <= 0 {
		config.ValidateTimeout = 5 * time.Second
	}
	report := config.OnDecision
	if report == nil {
		report = func(string) {}
	}

	return &Gatekeeper{
		provider: provider,
		config:   config,
		matcher:  NewPublicMatcher(append([]string{config.LoginPath}, config.PublicPaths...)),
		logger:   logger.With().Str("component", "gatekeeper").Logger(),
		report:   report,
	}, nil
}

// Handler returns the HTTP middleware handler function
func (g *Gatekeeper) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.matcher.Match(r.URL.Path) {
				g.report(OutcomePublic)
				next.ServeHTTP(w, r)
				return
			}

			// CORS preflight carries no cookies.
			if r.Method == http.MethodOptions {
				g.report(OutcomePublic)
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(g.config.Cookie.Name)
			if err != nil || cookie.Value == "" {
				g.logger.Debug().
					Str("path", r.URL.Path).
					Msg("Missing session cookie")
				g.report(OutcomeMissingToken)
				g.redirectToLogin(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), g.config.ValidateTimeout)
			decision, err := g.provider.Validate(ctx, cookie.Value)
			cancel()
			if err != nil {
				outcome := OutcomeError
				if errors.Is(err, context.DeadlineExceeded) {
					outcome = OutcomeTimeout
				}
				g.logger.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Str("outcome", outcome).
					Msg("Session validation did not complete")
				g.report(outcome)
				g.redirectToLogin(w, r)
				return
			}
			if !decision.Authenticated {
				g.logger.Debug().
					Str("path", r.URL.Path).
					Msg("Session cookie rejected")
				g.report(OutcomeRejected)
				http.SetCookie(w, g.config.Cookie.Clear())
				g.redirectToLogin(w, r)
				return
			}

			principal := &Principal{
				Subject:          decision.Subject,
				SessionID:        decision.SessionID,
				Remember:         decision.Remember,
				Token:            cookie.Value,
				TokenExpiresAt:   decision.TokenExpiresAt,
				SessionExpiresAt: decision.SessionExpiresAt,
			}

			outcome := OutcomeGranted
			if decision.RefreshedToken != "" {
				// The rotated token goes onto the response before any
				// downstream handler writes, so browser and handlers
				// both end up on the token that was actually honored.
				principal.Token = decision.RefreshedToken
				http.SetCookie(w, g.config.Cookie.Bake(decision.RefreshedToken, g.cookieDeadline(decision)))
				outcome = OutcomeRotated
			}
			g.report(outcome)

			g.logger.Debug().
				Str("subject", decision.Subject).
				Str("session_id", decision.SessionID).
				Str("path", r.URL.Path).
				Msg("Request authenticated")

			ctx = context.WithValue(r.Context(), PrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// cookieDeadline returns the Expires value for a session cookie: the
// session deadline for remember-me sessions, zero (browser session)
// otherwise.
func (g *Gatekeeper) cookieDeadline(decision *identity.Decision) time.Time {
	if decision.Remember {
		return decision.SessionExpiresAt
	}
	return time.Time{}
}

func (g *Gatekeeper) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	login := g.config.LoginPath + "?" + g.config.RedirectParam + "=" + url.QueryEscape(target)
	http.Redirect(w, r, login, http.StatusFound)
}
