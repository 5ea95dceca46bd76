package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/identity"
)

func TestMetrics_SignInsAndClosures(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordSignIn(true)
	m.RecordSignIn(true)
	m.RecordSignIn(false)
	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionClosed("revoked", time.Minute)

	if got := testutil.ToFloat64(m.SignInsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successful sign-ins, got %v", got)
	}
	if got := testutil.ToFloat64(m.SignInsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed sign-in, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("Expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionClosures.WithLabelValues("revoked")); got != 1 {
		t.Errorf("Expected 1 revoked closure, got %v", got)
	}
}

func TestMetrics_ExpiredBatch(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionsExpired(2)
	m.RecordSessionsExpired(0)

	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("Expected 1 active session after sweep, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionClosures.WithLabelValues("expired")); got != 2 {
		t.Errorf("Expected 2 expired closures, got %v", got)
	}
}

func TestMetrics_GateAndActivity(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordGateDecision("granted")
	m.RecordGateDecision("granted")
	m.RecordGateDecision("rejected")
	m.RecordTokenRotation()
	m.RecordSignal("logout", "sent")
	m.RecordSignal("logout", "received")
	m.RecordIdleWarning()
	m.RecordSessionExtension()
	m.RecordInteractionBurst()

	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("granted")); got != 2 {
		t.Errorf("Expected 2 granted decisions, got %v", got)
	}
	if got := testutil.ToFloat64(m.GateDecisions.WithLabelValues("rejected")); got != 1 {
		t.Errorf("Expected 1 rejected decision, got %v", got)
	}
	if got := testutil.ToFloat64(m.TokenRotations); got != 1 {
		t.Errorf("Expected 1 token rotation, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionSignals.WithLabelValues("logout", "sent")); got != 1 {
		t.Errorf("Expected 1 sent logout signal, got %v", got)
	}
	if got := testutil.ToFloat64(m.IdleWarnings); got != 1 {
		t.Errorf("Expected 1 idle warning, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionExtensions); got != 1 {
		t.Errorf("Expected 1 session extension, got %v", got)
	}
	if got := testutil.ToFloat64(m.InteractionBursts); got != 1 {
		t.Errorf("Expected 1 interaction burst, got %v", got)
	}
}

func TestRegistryWrapper_TracksLifecycle(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())
	registry := NewRegistryWrapper(identity.NewMemoryRegistry(zerolog.Nop()), m)
	ctx := context.Background()

	now := time.Now()
	rec := &identity.Record{
		ID:        "sess-1",
		Subject:   "frontdesk",
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := registry.Put(ctx, rec); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("Expected 1 active session, got %v", got)
	}

	if err := registry.Revoke(ctx, "sess-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("Expected 0 active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionClosures.WithLabelValues("revoked")); got != 1 {
		t.Errorf("Expected 1 revoked closure, got %v", got)
	}
}

func TestRegistryWrapper_CountsSweptSessions(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())
	registry := NewRegistryWrapper(identity.NewMemoryRegistry(zerolog.Nop()), m)
	ctx := context.Background()

	now := time.Now()
	stale := &identity.Record{
		ID:        "sess-stale",
		Subject:   "frontdesk",
		CreatedAt: now.Add(-2 * time.Hour),
		LastSeen:  now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Minute),
	}
	if err := registry.Put(ctx, stale); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	deleted, err := registry.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 swept session, got %d", deleted)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("Expected 0 active sessions after sweep, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionClosures.WithLabelValues("expired")); got != 1 {
		t.Errorf("Expected 1 expired closure, got %v", got)
	}
}
