package telemetry

import (
	"context"
	"time"

	"github.com/iSamBa/gym-manager-sub011/internal/identity"
)

// RegistryWrapper wraps a session registry to add telemetry
type RegistryWrapper struct {
	identity.Registry
	metrics *Metrics
}

// NewRegistryWrapper creates a new telemetry-aware registry wrapper
func NewRegistryWrapper(registry identity.Registry, metrics *Metrics) *RegistryWrapper {
	return &RegistryWrapper{
		Registry: registry,
		metrics:  metrics,
	}
}

// Put wraps the original Put to count opened sessions
func (w *RegistryWrapper) Put(ctx context.Context, rec *identity.Record) error {
	err := w.Registry.Put(ctx, rec)
	if err == nil {
		w.metrics.RecordSessionOpened()
	}
	return err
}

// Revoke wraps the original Revoke to record the closure and how long
// the session lived
func (w *RegistryWrapper) Revoke(ctx context.Context, sessionID string) error {
	// Fetch the record first to compute the session lifetime
	rec, getErr := w.Registry.Get(ctx, sessionID)

	err := w.Registry.Revoke(ctx, sessionID)
	if err == nil && getErr == nil {
		w.metrics.RecordSessionClosed("revoked", time.Since(rec.CreatedAt))
	}
	return err
}

// RevokeAllForSubject wraps the original to keep the active gauge in
// step with bulk revocations
func (w *RegistryWrapper) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	revoked, err := w.Registry.RevokeAllForSubject(ctx, subject)
	if err == nil && revoked > 0 {
		w.metrics.SessionsActive.Sub(float64(revoked))
		w.metrics.SessionClosures.WithLabelValues("revoked").Add(float64(revoked))
	}
	return revoked, err
}

// CleanupExpired wraps the original to count sessions swept out by TTL
func (w *RegistryWrapper) CleanupExpired(ctx context.Context) (int, error) {
	deleted, err := w.Registry.CleanupExpired(ctx)
	if err == nil {
		w.metrics.RecordSessionsExpired(deleted)
	}
	return deleted, err
}
