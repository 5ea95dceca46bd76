package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisSessionPrefix = "gymsess:"
	redisSubjectPrefix = "gymsubj:"
	redisScanBatch     = 1000
)

// RedisRegistry implements Registry on a shared Redis instance so every
// server replica sees the same honored-session set. Session keys carry
// their own TTL; Redis eviction is the backstop and the sweeper only
// prunes the subject index.
type RedisRegistry struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewRedisRegistry creates a Redis-backed session registry
func NewRedisRegistry(rdb *redis.Client, logger zerolog.Logger) *RedisRegistry {
	return &RedisRegistry{
		rdb:    rdb,
		logger: logger.With().Str("component", "redis_registry").Logger(),
	}
}

func (r *RedisRegistry) key(sessionID string) string {
	return redisSessionPrefix + sessionID
}

func (r *RedisRegistry) subjectKey(subject string) string {
	return redisSubjectPrefix + subject
}

// Put stores or replaces a session record
func (r *RedisRegistry) Put(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return NewSessionExpiredError(rec.ID)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return NewStorageError("put", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(rec.ID), data, ttl)
		pipe.SAdd(ctx, r.subjectKey(rec.Subject), rec.ID)
		return nil
	})
	if err != nil {
		return NewStorageError("put", err)
	}

	r.logger.Debug().
		Str("session_id", rec.ID).
		Str("subject", rec.Subject).
		Time("expires_at", rec.ExpiresAt).
		Msg("Session record stored")
	return nil
}

// Get retrieves a session record by ID
func (r *RedisRegistry) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := r.rdb.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NewSessionNotFoundError(sessionID)
		}
		return nil, NewStorageError("get", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, NewStorageError("decode", err)
	}
	return &rec, nil
}

// Touch slides the session deadline
func (r *RedisRegistry) Touch(ctx context.Context, sessionID string, seenAt, expiresAt time.Time) error {
	rec, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	rec.LastSeen = seenAt
	rec.ExpiresAt = expiresAt

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return NewSessionExpiredError(sessionID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return NewStorageError("touch", err)
	}
	if err := r.rdb.Set(ctx, r.key(sessionID), data, ttl).Err(); err != nil {
		return NewStorageError("touch", err)
	}
	return nil
}

// Revoke removes a session record
func (r *RedisRegistry) Revoke(ctx context.Context, sessionID string) error {
	rec, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(sessionID))
		pipe.SRem(ctx, r.subjectKey(rec.Subject), sessionID)
		return nil
	})
	if err != nil {
		return NewStorageError("revoke", err)
	}

	r.logger.Debug().
		Str("session_id", sessionID).
		Msg("Session revoked")
	return nil
}

// RevokeAllForSubject removes every session belonging to a subject
func (r *RedisRegistry) RevokeAllForSubject(ctx context.Context, subject string) (int, error) {
	subjectKey := r.subjectKey(subject)

	ids, err := r.rdb.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, NewStorageError("revoke_all", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}
	keys = append(keys, subjectKey)

	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, NewStorageError("revoke_all", err)
	}

	if len(ids) > 0 {
		r.logger.Info().
			Str("subject", subject).
			Int("revoked_count", len(ids)).
			Msg("All subject sessions revoked")
	}
	return len(ids), nil
}

// CleanupExpired prunes subject-index entries whose session keys were
// evicted by TTL. Session keys themselves expire natively.
func (r *RedisRegistry) CleanupExpired(ctx context.Context) (int, error) {
	var (
		cursor uint64
		pruned int
	)

	for {
		subjectKeys, next, err := r.rdb.Scan(ctx, cursor, redisSubjectPrefix+"*", redisScanBatch).Result()
		if err != nil {
			return pruned, NewStorageError("cleanup", err)
		}

		for _, subjectKey := range subjectKeys {
			ids, err := r.rdb.SMembers(ctx, subjectKey).Result()
			if err != nil {
				return pruned, NewStorageError("cleanup", err)
			}
			for _, id := range ids {
				exists, err := r.rdb.Exists(ctx, r.key(id)).Result()
				if err != nil {
					return pruned, NewStorageError("cleanup", err)
				}
				if exists == 0 {
					if err := r.rdb.SRem(ctx, subjectKey, id).Err(); err != nil {
						return pruned, NewStorageError("cleanup", err)
					}
					pruned++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if pruned > 0 {
		r.logger.Info().
			Int("pruned_count", pruned).
			Msg("Dangling session index entries removed")
	}
	return pruned, nil
}

// Count returns the number of live session keys
func (r *RedisRegistry) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, redisSessionPrefix+"*", redisScanBatch).Result()
		if err != nil {
			return 0, NewStorageError("count", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return total, nil
}
