package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/vaultcore/internal/metrics"
	"github.com/phrazzld/vaultcore/internal/store"
)

// DefaultSweepInterval is how often expired records are evicted.
const DefaultSweepInterval = time.Minute

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	// Interval between sweeps. If zero, defaults to DefaultSweepInterval.
	Interval time.Duration
}

// Sweeper periodically calls DeleteExpired on each registered store. Reads
// already treat expired records as absent; sweeping only bounds memory.
type Sweeper struct {
	config  SweeperConfig
	targets map[string]store.Sweepable
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewSweeper creates a stopped sweeper. m may be nil.
func NewSweeper(config SweeperConfig, logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		config:     config,
		targets:    make(map[string]store.Sweepable),
		logger:     logger.With(slog.String("component", "sweeper")),
		metrics:    m,
		now:        time.Now,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Register adds a store under kind, which labels logs and metrics. Register
// must be called before Start.
func (s *Sweeper) Register(kind string, target store.Sweepable) {
	s.targets[kind] = target
}

// Start launches the sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.cancelFunc()
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(s.ctx)
		}
	}
}

// SweepOnce runs one pass over every registered store and returns the
// number of records removed per kind.
func (s *Sweeper) SweepOnce(ctx context.Context) map[string]int {
	now := s.now()
	removed := make(map[string]int, len(s.targets))

	for kind, target := range s.targets {
		n, err := target.DeleteExpired(ctx, now)
		if err != nil {
			s.logger.Error("sweep failed",
				slog.String("kind", kind),
				slog.String("error", err.Error()))
			continue
		}
		removed[kind] = n
		s.metrics.AddSwept(kind, n)
		if n > 0 {
			s.logger.Debug("swept expired records",
				slog.String("kind", kind),
				slog.Int("count", n))
		}
	}
	return removed
}
