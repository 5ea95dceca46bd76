package broadcast

import "time"

// Kind labels a cross-tab session signal.
type Kind string

const (
	// KindLogin announces a successful sign-in.
	KindLogin Kind = "login"

	// KindLogout announces a sign-out. Logout is authoritative:
	// observers drop local session state regardless of their own timer
	// state.
	KindLogout Kind = "logout"
)

// Valid reports whether k is a known signal kind. Unknown kinds on the
// wire are dropped, they never error.
func (k Kind) Valid() bool {
	return k == KindLogin || k == KindLogout
}

// Signal is one session state change announced between tabs.
type Signal struct {
	Kind      Kind      `json:"kind"`
	EmittedAt time.Time `json:"emitted_at"`
}

// envelope is the wire form. Origin identifies the publishing handle so
// a subscriber can drop its own writes: the medium does not notify the
// writer, callers apply their local change directly.
type envelope struct {
	Origin    string    `json:"origin"`
	Kind      Kind      `json:"kind"`
	EmittedAt time.Time `json:"emitted_at"`
}
