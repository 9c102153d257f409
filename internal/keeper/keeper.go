package keeper

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Keeper runs the refresher and the stage checker together.
type Keeper struct {
	Refresher *Refresher
	Checker   *StageChecker
	logger    *log.Logger
}

func New(refresher *Refresher, checker *StageChecker, logger *log.Logger) *Keeper {
	return &Keeper{
		Refresher: refresher,
		Checker:   checker,
		logger:    logger.WithPrefix("keeper"),
	}
}

// Start launches both loops. Either may be nil.
func (k *Keeper) Start(ctx context.Context) *Loop {
	g := &errgroup.Group{}
	if k.Refresher != nil {
		refresh := k.Refresher.Start(ctx)
		g.Go(refresh.Wait)
	}
	if k.Checker != nil {
		stages := k.Checker.Start(ctx)
		g.Go(stages.Wait)
	}
	k.logger.Debug("Keeper started")
	return &Loop{group: g}
}

// Run blocks until ctx ends and logs the checker's counters on the way out.
func (k *Keeper) Run(ctx context.Context) error {
	err := k.Start(ctx).Wait()
	if k.Checker != nil {
		stats := k.Checker.Stats()
		k.logger.Info("Keeper stopped",
			"sent", stats.Sent,
			"failed", stats.Failed,
			"deduplicated", stats.Deduplicated,
			"dropped", stats.Dropped,
			"skipped", stats.Skipped)
	}
	return err
}
