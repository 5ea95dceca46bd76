package identity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const sweepTimeout = 30 * time.Second

// Sweeper periodically prunes expired sessions from a registry. The
// Redis registry expires session keys natively, so for it the sweeper
// only clears dangling subject-index entries; the memory registry
// relies on the sweeper entirely.
type Sweeper struct {
	registry Registry
	interval time.Duration
	logger   zerolog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
	mutex     sync.Mutex
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(registry Registry, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry:  registry,
		interval:  interval,
		logger:    logger.With().Str("component", "session_sweeper").Logger(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins periodic sweeping in a background goroutine
func (s *Sweeper) Start(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		s.logger.Warn().Msg("Sweeper already running")
		return
	}
	s.running = true

	go s.run(ctx)
	s.logger.Info().Dur("interval", s.interval).Msg("Session sweeper started")
}

// Stop halts periodic sweeping and waits for the current run to finish
func (s *Sweeper) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	s.mutex.Unlock()

	close(s.stopCh)
	<-s.stoppedCh
	s.logger.Info().Msg("Session sweeper stopped")
}

// IsRunning reports whether the sweeper loop is active
func (s *Sweeper) IsRunning() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// RunOnce performs a single sweep immediately
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	pruned, err := s.registry.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
		return 0, err
	}
	if pruned > 0 {
		s.logger.Info().Int("pruned", pruned).Msg("Session sweep completed")
	} else {
		s.logger.Debug().Msg("Session sweep completed, nothing to prune")
	}
	return pruned, nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Session sweeper stopping due to context cancellation")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			_, _ = s.RunOnce(sweepCtx)
			cancel()
		}
	}
}
