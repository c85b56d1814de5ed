package printer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = time.Minute

// Sweeper periodically evicts expired pool connections and health cache
// entries so the request path never pays for cleanup. It must share the same
// manager and cache instances as the dispatch pipeline.
type Sweeper struct {
	manager  *Manager
	health   *HealthCache
	interval time.Duration
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper over the given manager and health cache.
func NewSweeper(manager *Manager, health *HealthCache, interval time.Duration, logger zerolog.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		manager:  manager,
		health:   health,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce()
			}
		}
	}()
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce() {
	conns := s.manager.Sweep()
	entries := s.health.Sweep()
	if conns > 0 || entries > 0 {
		s.logger.Debug().Int("connections", conns).Int("health_entries", entries).Msg("background sweep")
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.done
}
