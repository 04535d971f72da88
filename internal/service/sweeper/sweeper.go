package sweeper

import (
	"context"
	"log/slog"
	"time"

	"whereabouts/internal/domain/presence"
	"whereabouts/internal/metrics"
)

// Config contains the sweep period and the staleness window
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns the default sweep policy
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Timeout:  5 * time.Minute,
	}
}

// Sweeper periodically evicts users whose connections have gone silent past
// the timeout without an observed transport disconnect. Evictions go through
// the same disconnect path as a real close, so the cleanup logic exists in
// exactly one place.
type Sweeper struct {
	registry presence.Registry
	evict    func(connID string)
	config   Config
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *slog.Logger
}

// New creates a sweeper. evict is called once per stale connection; the hub
// routes it through its disconnect handler.
func New(registry presence.Registry, evict func(connID string), config Config, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		evict:    evict,
		config:   config,
		done:     make(chan struct{}),
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start launches the periodic sweep
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// sweep evicts every user whose last activity predates now minus the
// timeout. Re-entrant ticks are harmless: eviction removes the mapping, so
// a user can be evicted at most once.
func (s *Sweeper) sweep(now time.Time) {
	cutoff := now.Add(-s.config.Timeout)
	for _, u := range s.registry.Stale(cutoff) {
		s.logger.Info("evicting silent connection",
			slog.String("userID", u.ID),
			slog.String("connID", u.ConnectionID),
			slog.Time("lastActivity", u.LastActivity))
		metrics.SweeperEvictionsTotal.Inc()
		s.evict(u.ConnectionID)
	}
}
