package keeper

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	metrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/tron"
)

const (
	DefaultCheckInterval = 3 * time.Second
	DefaultQueueSize     = 64
	DefaultWorkers       = 4
)

// Metric names registered by the stage checker.
const (
	MetricSent         = "keeper.check.sent"
	MetricFailed       = "keeper.check.failed"
	MetricDeduplicated = "keeper.check.deduplicated"
	MetricDropped      = "keeper.check.dropped"
	MetricSkipped      = "keeper.check.skipped"
)

// BlockChecker sends checkBlockNumber for a poll.
type BlockChecker interface {
	CheckBlockNumber(ctx context.Context, poll tron.Hash) (string, error)
}

// PollSource lists the polls to keep moving.
type PollSource interface {
	Hashes() []tron.Hash
	LastStage(hash tron.Hash) (contract.Stage, bool)
}

// CheckerConfig sizes the stage checker.
type CheckerConfig struct {
	Interval     time.Duration
	QueueSize    int
	Workers      int
	SkipFinished bool
}

// DefaultCheckerConfig returns the stage checker defaults.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Interval:     DefaultCheckInterval,
		QueueSize:    DefaultQueueSize,
		Workers:      DefaultWorkers,
		SkipFinished: true,
	}
}

// StageChecker periodically asks the contract to advance the stage of every
// known poll. Requests go through a bounded queue drained by a fixed number
// of workers; a poll is never queued twice, and is not queued again while its
// previous request is in flight. Overflow is dropped until the next tick.
type StageChecker struct {
	checker BlockChecker
	polls   PollSource
	clock   quartz.Clock
	cfg     CheckerConfig
	logger  *log.Logger

	queue chan tron.Hash
	mu    sync.Mutex
	gate  func() bool
	// pending holds polls that are queued or in flight
	pending map[tron.Hash]struct{}

	registry     metrics.Registry
	sent         metrics.Counter
	failed       metrics.Counter
	deduplicated metrics.Counter
	dropped      metrics.Counter
	skipped      metrics.Counter
}

func NewStageChecker(checker BlockChecker, polls PollSource, clock quartz.Clock, cfg CheckerConfig, logger *log.Logger) *StageChecker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCheckInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	r := metrics.NewRegistry()
	return &StageChecker{
		checker:      checker,
		polls:        polls,
		clock:        clock,
		cfg:          cfg,
		logger:       logger.WithPrefix("stages"),
		queue:        make(chan tron.Hash, cfg.QueueSize),
		pending:      make(map[tron.Hash]struct{}),
		registry:     r,
		sent:         metrics.NewRegisteredCounter(MetricSent, r),
		failed:       metrics.NewRegisteredCounter(MetricFailed, r),
		deduplicated: metrics.NewRegisteredCounter(MetricDeduplicated, r),
		dropped:      metrics.NewRegisteredCounter(MetricDropped, r),
		skipped:      metrics.NewRegisteredCounter(MetricSkipped, r),
	}
}

// SetGate makes ticks no-ops while ready returns false, e.g. while no
// wallet is available to sign.
func (s *StageChecker) SetGate(ready func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = ready
}

// Start registers the ticker and launches the workers. Everything stops when
// ctx ends.
func (s *StageChecker) Start(ctx context.Context) *Loop {
	g, gctx := errgroup.WithContext(ctx)

	waiter := s.clock.TickerFunc(gctx, s.cfg.Interval, func() error {
		s.Enqueue()
		return nil
	}, "keeper", "stages")
	g.Go(waiter.Wait)

	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			s.work(gctx)
			return nil
		})
	}
	return &Loop{group: g}
}

// Enqueue schedules a check for every known poll and returns how many were
// queued.
func (s *StageChecker) Enqueue() int {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil && !gate() {
		return 0
	}

	queued := 0
	for _, hash := range s.polls.Hashes() {
		if s.cfg.SkipFinished {
			if stage, ok := s.polls.LastStage(hash); ok && stage.Finished() {
				s.skipped.Inc(1)
				continue
			}
		}

		s.mu.Lock()
		if _, ok := s.pending[hash]; ok {
			s.mu.Unlock()
			s.deduplicated.Inc(1)
			continue
		}
		select {
		case s.queue <- hash:
			s.pending[hash] = struct{}{}
			queued++
		default:
			s.dropped.Inc(1)
		}
		s.mu.Unlock()
	}

	if queued > 0 {
		s.logger.Debug("Checking block number", "polls", queued)
	}
	return queued
}

func (s *StageChecker) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case hash := <-s.queue:
			s.check(ctx, hash)
		}
	}
}

func (s *StageChecker) check(ctx context.Context, hash tron.Hash) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, hash)
		s.mu.Unlock()
	}()

	txID, err := s.checker.CheckBlockNumber(ctx, hash)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("checkBlockNumber failed", "poll", hash, "error", err)
		}
		s.failed.Inc(1)
		return
	}
	s.sent.Inc(1)
	s.logger.Debug("checkBlockNumber sent", "poll", hash, "txid", txID)
}

// Registry exposes the checker's counters.
func (s *StageChecker) Registry() metrics.Registry {
	return s.registry
}

// CheckerStats is a point-in-time copy of the checker's counters.
type CheckerStats struct {
	Sent         int64
	Failed       int64
	Deduplicated int64
	Dropped      int64
	Skipped      int64
}

func (s *StageChecker) Stats() CheckerStats {
	return CheckerStats{
		Sent:         s.sent.Count(),
		Failed:       s.failed.Count(),
		Deduplicated: s.deduplicated.Count(),
		Dropped:      s.dropped.Count(),
		Skipped:      s.skipped.Count(),
	}
}

// Pending reports how many polls are queued or in flight.
func (s *StageChecker) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
