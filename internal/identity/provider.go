package identity

import (
	"context"
	"time"
)

// Credentials carries one sign-in attempt.
type Credentials struct {
	Username string
	Password string
	// Remember selects the long session duration. The choice is made
	// here, at sign-in, and is immutable for the session lifetime.
	Remember bool
}

// Grant is a successful sign-in: the minted token plus its session
// record.
type Grant struct {
	Token     string
	SessionID string
	Subject   string
	Remember  bool
	// TokenExpiresAt is the access token deadline, not the session
	// deadline; the session slides on every validated request.
	TokenExpiresAt time.Time
	// SessionExpiresAt is the sliding session deadline. Remember-me
	// cookies persist until this instant.
	SessionExpiresAt time.Time
}

// Decision is the outcome of validating one request's token. Decisions
// are request-scoped and never cached across requests.
type Decision struct {
	Authenticated bool
	Subject       string
	SessionID     string
	Remember      bool
	// TokenExpiresAt is the deadline of the effective token: the
	// refreshed one when rotation happened, otherwise the presented
	// one.
	TokenExpiresAt time.Time
	// SessionExpiresAt is the session deadline after this request's
	// slide.
	SessionExpiresAt time.Time
	// RefreshedToken is non-empty when the token was rotated during
	// validation. Callers must propagate it to the response cookie so
	// the response is derived from the token that was actually
	// honored.
	RefreshedToken string
}

// Provider is the identity authority consulted on every request.
type Provider interface {
	// Validate checks token server side. A nil error with
	// Authenticated=false is a conclusive reject; a non-nil error means
	// validation could not complete and the caller must treat the
	// request as unauthenticated without retrying.
	Validate(ctx context.Context, token string) (*Decision, error)

	// SignInWithCredentials verifies credentials and opens a session.
	SignInWithCredentials(ctx context.Context, c Credentials) (*Grant, error)

	// SignOut closes the session carried by token. Unknown or already
	// closed tokens are not an error.
	SignOut(ctx context.Context, token string) error
}

// CredentialStore verifies operator credentials.
type CredentialStore interface {
	// Verify returns the subject for a matching username/password pair,
	// or an INVALID_CREDENTIALS error. It must take comparable time for
	// unknown usernames and wrong passwords.
	Verify(ctx context.Context, username, password string) (string, error)
}
