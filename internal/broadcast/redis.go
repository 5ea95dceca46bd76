package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultKey is the well-known storage key holding the last signal.
	DefaultKey = "gym:session:signal"

	// DefaultChannel carries signal notifications.
	DefaultChannel = "gym:session:signals"

	// signalTTL bounds how long a stored signal outlives its emission.
	// Stale signals are harmless (observers compare EmittedAt against
	// their own session start) so this is only housekeeping.
	signalTTL = 24 * time.Hour
)

// RedisBus broadcasts signals through a shared Redis instance so tabs
// on different machines stay in step. Each publish stores the signal
// under DefaultKey, last write wins, and notifies DefaultChannel.
type RedisBus struct {
	rdb     *redis.Client
	key     string
	channel string
	origin  string
	log     zerolog.Logger
}

// NewRedisBus wraps rdb as a tab-local bus handle with a fresh origin
// identity.
func NewRedisBus(rdb *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		rdb:     rdb,
		key:     DefaultKey,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		log:     logger.With().Str("component", "broadcast").Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, s Signal) error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	payload, err := json.Marshal(envelope{
		Origin:    b.origin,
		Kind:      s.Kind,
		EmittedAt: s.EmittedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	_, err = b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.key, payload, signalTTL)
		pipe.Publish(ctx, b.channel, payload)
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Str("kind", string(s.Kind)).Msg("Signal publish failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b.log.Debug().Str("kind", string(s.Kind)).Msg("Signal published")
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(Signal)) (func(), error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	// Receive confirms the subscription is live before we return.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	go func() {
		for msg := range sub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Debug().Err(err).Msg("Dropping malformed signal")
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			if !env.Kind.Valid() {
				b.log.Debug().Str("kind", string(env.Kind)).Msg("Dropping unknown signal kind")
				continue
			}
			fn(Signal{Kind: env.Kind, EmittedAt: env.EmittedAt})
		}
	}()

	return func() { _ = sub.Close() }, nil
}

// Snapshot reads the stored signal so a tab that was hidden or offline
// can catch up on the last authoritative state change.
func (b *RedisBus) Snapshot(ctx context.Context) (*Signal, error) {
	raw, err := b.rdb.Get(ctx, b.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.log.Debug().Err(err).Msg("Ignoring malformed stored signal")
		return nil, nil
	}
	if !env.Kind.Valid() {
		return nil, nil
	}
	return &Signal{Kind: env.Kind, EmittedAt: env.EmittedAt}, nil
}
