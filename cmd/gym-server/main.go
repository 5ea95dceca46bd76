package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iSamBa/gym-manager-sub011/internal/broadcast"
	"github.com/iSamBa/gym-manager-sub011/internal/identity"
	"github.com/iSamBa/gym-manager-sub011/internal/server"
	"github.com/iSamBa/gym-manager-sub011/internal/telemetry"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()

	cfg, err := server.FromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if level, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		zerolog.SetGlobalLevel(level)
	}

	secret := cfg.TokenSecret
	if secret == "" {
		secret = randomHex(32)
		logger.Warn().Msg("GYM_TOKEN_SECRET is not set, using an ephemeral secret; sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewMetrics()

	// With Redis the session registry and the tab signals are shared
	// across replicas. Without it a single instance runs on memory.
	var registry identity.Registry
	var bus broadcast.Bus
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr := rdb.Ping(pingCtx).Err()
		cancel()
		if pingErr != nil {
			logger.Warn().Err(pingErr).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, falling back to in-memory sessions")
			registry = identity.NewMemoryRegistry(logger)
			bus = broadcast.NewHub().Bus()
		} else {
			logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis session registry")
			registry = identity.NewRedisRegistry(rdb, logger)
			bus = broadcast.NewRedisBus(rdb, logger)
		}
	} else {
		registry = identity.NewMemoryRegistry(logger)
		bus = broadcast.NewHub().Bus()
	}
	wrapped := telemetry.NewRegistryWrapper(registry, metrics)

	creds, err := identity.NewMemoryCredentials(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create credential store")
	}
	username := os.Getenv("GYM_OPERATOR_USERNAME")
	password := os.Getenv("GYM_OPERATOR_PASSWORD")
	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = randomHex(12)
		logger.Info().
			Str("username", username).
			Str("password", password).
			Msg("GYM_OPERATOR_PASSWORD is not set, generated a one-off operator password")
	}
	if err := creds.Add(username, password); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed operator credentials")
	}

	provider, err := identity.NewJWTProvider(identity.JWTConfig{
		Secret:       []byte(secret),
		Issuer:       cfg.TokenIssuer,
		TokenTTL:     cfg.TokenTTL,
		RotateWithin: cfg.RotateWithin,
		SessionTTL:   cfg.InactivityTimeout,
		RememberTTL:  cfg.RememberTimeout,
	}, creds, wrapped, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create identity provider")
	}

	sweeper := identity.NewSweeper(wrapped, cfg.CleanupInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	collector := telemetry.NewSystemMetricsCollector(metrics, logger, cfg.MetricsInterval)
	go collector.Start(ctx)
	defer collector.Stop()

	srv, err := server.New(cfg, provider, wrapped, bus, metrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown did not finish cleanly")
		}
	}
}

// randomHex returns n random bytes hex encoded, so the string is twice
// as long as n.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
