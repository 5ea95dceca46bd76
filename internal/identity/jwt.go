package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minSecretBytes = 32

// Claims is the access token payload. The registry session ID travels
// with the token so revocation can be checked on every request.
type Claims struct {
	SessionID string `json:"sid"`
	Remember  bool   `json:"rmb,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig configures the built-in HS256 identity provider.
type JWTConfig struct {
	// Secret signs access tokens. At least 32 bytes.
	Secret []byte

	// Issuer is stamped into and required from every token.
	Issuer string

	// TokenTTL is the access token lifetime. Kept short; the sliding
	// session in the registry is the real session length.
	TokenTTL time.Duration

	// RotateWithin re-mints the token during validation when less than
	// this much lifetime remains. Must be shorter than TokenTTL.
	RotateWithin time.Duration

	// SessionTTL is the sliding registry lifetime for standard
	// sessions, RememberTTL for remember-me sessions. Each validated
	// request pushes the deadline out again.
	SessionTTL  time.Duration
	RememberTTL time.Duration

	// Leeway tolerates clock skew between replicas when checking
	// expiry.
	Leeway time.Duration

	// Now defaults to time.Now. Swapped in tests.
	Now func() time.Time
}

func (c *JWTConfig) validate() error {
	if len(c.Secret) < minSecretBytes {
		return NewConfigError("token secret must be at least 32 bytes")
	}
	if c.Issuer == "" {
		return NewConfigError("issuer must not be empty")
	}
	if c.TokenTTL <= 0 {
		return NewConfigError("token ttl must be positive")
	}
	if c.RotateWithin < 0 || c.RotateWithin >= c.TokenTTL {
		return NewConfigError("rotate-within must be shorter than the token ttl")
	}
	if c.SessionTTL <= 0 || c.RememberTTL <= 0 {
		return NewConfigError("session ttls must be positive")
	}
	return nil
}

// JWTProvider implements Provider with HS256 access tokens and a
// revocable session registry. Every validation consults the registry,
// so a revoked session fails even while its token is well formed and
// unexpired.
type JWTProvider struct {
	cfg    JWTConfig
	creds  CredentialStore
	reg    Registry
	parser *jwt.Parser
	logger zerolog.Logger
	now    func() time.Time
}

// NewJWTProvider creates the built-in identity provider
func NewJWTProvider(cfg JWTConfig, creds CredentialStore, reg Registry, logger zerolog.Logger) (*JWTProvider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return cfg.Now() }),
	)

	return &JWTProvider{
		cfg:    cfg,
		creds:  creds,
		reg:    reg,
		parser: parser,
		logger: logger.With().Str("component", "jwt_provider").Logger(),
		now:    cfg.Now,
	}, nil
}

// SignInWithCredentials verifies credentials and opens a session
func (p *JWTProvider) SignInWithCredentials(ctx context.Context, c Credentials) (*Grant, error) {
	subject, err := p.creds.Verify(ctx, c.Username, c.Password)
	if err != nil {
		p.logger.Info().Str("username", c.Username).Msg("Sign-in rejected")
		return nil, err
	}

	now := p.now()
	rec := &Record{
		ID:        uuid.NewString(),
		Subject:   subject,
		Remember:  c.Remember,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(p.sessionTTL(c.Remember)),
	}
	if err := p.reg.Put(ctx, rec); err != nil {
		return nil, err
	}

	token, tokenExp, err := p.mint(subject, rec.ID, c.Remember, now)
	if err != nil {
		// Best effort: do not leave an orphaned session behind.
		_ = p.reg.Revoke(ctx, rec.ID)
		return nil, err
	}

	p.logger.Info().
		Str("subject", subject).
		Str("session_id", rec.ID).
		Bool("remember", c.Remember).
		Msg("Session opened")

	return &Grant{
		Token:            token,
		SessionID:        rec.ID,
		Subject:          subject,
		Remember:         c.Remember,
		TokenExpiresAt:   tokenExp,
		SessionExpiresAt: rec.ExpiresAt,
	}, nil
}

// Validate checks a token against the signature, the claims, and the
// session registry, sliding the session deadline and rotating the token
// when it is close to expiry.
func (p *JWTProvider) Validate(ctx context.Context, token string) (*Decision, error) {
	claims := &Claims{}
	parsed, err := p.parser.ParseWithClaims(token, claims, p.keyFunc)
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		p.logger.Debug().Err(err).Msg("Token rejected")
		return &Decision{Authenticated: false}, nil
	}

	now := p.now()
	rec, err := p.reg.Get(ctx, claims.SessionID)
	if err != nil {
		if HasCode(err, ErrSessionNotFound) {
			// Well-formed token, revoked session.
			p.logger.Debug().Str("session_id", claims.SessionID).Msg("Token for revoked session rejected")
			return &Decision{Authenticated: false}, nil
		}
		return nil, err
	}
	if rec.Expired(now) {
		p.logger.Debug().Str("session_id", rec.ID).Msg("Token for expired session rejected")
		return &Decision{Authenticated: false}, nil
	}

	// Slide the session. A failed slide is logged, not fatal: the
	// request itself was authenticated.
	if err := p.reg.Touch(ctx, rec.ID, now, now.Add(p.sessionTTL(rec.Remember))); err != nil {
		p.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("Session slide failed")
	}

	decision := &Decision{
		Authenticated:    true,
		Subject:          rec.Subject,
		SessionID:        rec.ID,
		Remember:         rec.Remember,
		TokenExpiresAt:   claims.ExpiresAt.Time,
		SessionExpiresAt: now.Add(p.sessionTTL(rec.Remember)),
	}

	if claims.ExpiresAt.Time.Sub(now) < p.cfg.RotateWithin {
		refreshed, exp, err := p.mint(rec.Subject, rec.ID, rec.Remember, now)
		if err != nil {
			// Keep serving the presented token until it expires.
			p.logger.Warn().Err(err).Str("session_id", rec.ID).Msg("Token rotation failed")
		} else {
			decision.RefreshedToken = refreshed
			decision.TokenExpiresAt = exp
			p.logger.Debug().Str("session_id", rec.ID).Msg("Token rotated")
		}
	}

	return decision, nil
}

// SignOut closes the session carried by token. An expired but authentic
// token still revokes its session; anything else is ignored.
func (p *JWTProvider) SignOut(ctx context.Context, token string) error {
	claims := &Claims{}
	_, err := p.parser.ParseWithClaims(token, claims, p.keyFunc)
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if claims.SessionID == "" {
		return nil
	}

	if err := p.reg.Revoke(ctx, claims.SessionID); err != nil {
		if HasCode(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	p.logger.Info().Str("session_id", claims.SessionID).Msg("Session closed")
	return nil
}

// RevokeAllForSubject force-closes every session of one subject.
func (p *JWTProvider) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	return p.reg.RevokeAllForSubject(ctx, subject)
}

func (p *JWTProvider) keyFunc(*jwt.Token) (interface{}, error) {
	return p.cfg.Secret, nil
}

func (p *JWTProvider) sessionTTL(remember bool) time.Duration {
	if remember {
		return p.cfg.RememberTTL
	}
	return p.cfg.SessionTTL
}

func (p *JWTProvider) mint(subject, sessionID string, remember bool, now time.Time) (string, time.Time, error) {
	exp := now.Add(p.cfg.TokenTTL)
	claims := Claims{
		SessionID: sessionID,
		Remember:  remember,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", time.Time{}, NewTokenMintingError(err)
	}
	return signed, exp, nil
}
