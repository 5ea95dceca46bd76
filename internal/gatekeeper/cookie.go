package gatekeeper

import (
	"net/http"
	"time"
)

// CookieTemplate is the shape of the session cookie the gatekeeper
// reads and writes. Bake and Clear stamp concrete cookies out of it.
type CookieTemplate struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// DefaultCookieTemplate returns the standard session cookie settings
func DefaultCookieTemplate() CookieTemplate {
	return CookieTemplate{
		Name:     "gym_session",
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

// Bake creates a cookie carrying value. A zero expires produces a
// browser-session cookie; remember-me sessions pass the session
// deadline so the cookie survives browser restarts.
func (t CookieTemplate) Bake(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     t.Name,
		Value:    value,
		Path:     t.Path,
		Domain:   t.Domain,
		Secure:   t.Secure,
		SameSite: t.SameSite,
		HttpOnly: true,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
	}
	return cookie
}

// Clear creates an already-expired cookie that removes the session
// cookie from the browser.
func (t CookieTemplate) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     t.Name,
		Value:    "",
		Path:     t.Path,
		Domain:   t.Domain,
		Secure:   t.Secure,
		SameSite: t.SameSite,
		HttpOnly: true,
		MaxAge:   -1,
	}
}
