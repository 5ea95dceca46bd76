package identity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Record is one live session in the registry.
type Record struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Remember  bool      `json:"remember"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record's sliding deadline has passed.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Registry tracks which sessions are still honored. A well-formed,
// unexpired token whose session is absent here validates as rejected,
// which is what makes sign-out authoritative across tabs and machines.
type Registry interface {
	// Put stores or replaces a record.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by session ID.
	Get(ctx context.Context, sessionID string) (*Record, error)

	// Touch slides the record's deadline out to expiresAt and stamps
	// LastSeen.
	Touch(ctx context.Context, sessionID string, seenAt, expiresAt time.Time) error

	// Revoke removes a record. Revoking an absent record returns a
	// SESSION_NOT_FOUND error.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAllForSubject removes every record belonging to subject and
	// returns how many were dropped.
	RevokeAllForSubject(ctx context.Context, subject string) (int, error)

	// CleanupExpired drops records whose deadline has passed, returning
	// how many were dropped.
	CleanupExpired(ctx context.Context) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// MemoryRegistry implements Registry with in-memory storage
type MemoryRegistry struct {
	records map[string]*Record
	mutex   sync.RWMutex
	logger  zerolog.Logger
}

// NewMemoryRegistry creates a new in-memory session registry
func NewMemoryRegistry(logger zerolog.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]*Record),
		logger:  logger.With().Str("component", "memory_registry").Logger(),
	}
}

// Put stores or replaces a session record
func (r *MemoryRegistry) Put(ctx context.Context, rec *Record) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	recCopy := *rec
	r.records[rec.ID] = &recCopy

	r.logger.Debug().
		Str("session_id", rec.ID).
		Str("subject", rec.Subject).
		Time("expires_at", rec.ExpiresAt).
		Msg("Session record stored")
	return nil
}

// Get retrieves a session record by ID
func (r *MemoryRegistry) Get(ctx context.Context, sessionID string) (*Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.records[sessionID]
	if !exists {
		r.logger.Debug().
			Str("session_id", sessionID).
			Msg("Session record not found")
		return nil, NewSessionNotFoundError(sessionID)
	}

	// Return a copy to avoid race conditions
	recCopy := *rec
	return &recCopy, nil
}

// Touch slides the session deadline
func (r *MemoryRegistry) Touch(ctx context.Context, sessionID string, seenAt, expiresAt time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.records[sessionID]
	if !exists {
		return NewSessionNotFoundError(sessionID)
	}

	rec.LastSeen = seenAt
	rec.ExpiresAt = expiresAt
	return nil
}

// Revoke removes a session record
func (r *MemoryRegistry) Revoke(ctx context.Context, sessionID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.records[sessionID]; !exists {
		r.logger.Debug().
			Str("session_id", sessionID).
			Msg("Session record not found for revocation")
		return NewSessionNotFoundError(sessionID)
	}

	delete(r.records, sessionID)
	r.logger.Debug().
		Str("session_id", sessionID).
		Msg("Session revoked")
	return nil
}

// RevokeAllForSubject removes every session belonging to a subject
func (r *MemoryRegistry) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	revoked := 0
	for id, rec := range r.records {
		if rec.Subject == subject {
			delete(r.records, id)
			revoked++
		}
	}

	if revoked > 0 {
		r.logger.Info().
			Str("subject", subject).
			Int("revoked_count", revoked).
			Msg("All subject sessions revoked")
	}
	return revoked, nil
}

// CleanupExpired drops records whose deadline has passed
func (r *MemoryRegistry) CleanupExpired(ctx context.Context) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	deleted := 0
	for id, rec := range r.records {
		if rec.Expired(now) {
			delete(r.records, id)
			deleted++
		}
	}

	if deleted > 0 {
		r.logger.Info().
			Int("deleted_count", deleted).
			Msg("Expired session records removed")
	}
	return deleted, nil
}

// Count returns the number of stored records
func (r *MemoryRegistry) Count(ctx context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.records), nil
}
