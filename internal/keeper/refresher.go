// Package keeper runs the periodic loops that keep a FaceWorth client in step
// with the chain: the balance/block refresher and the stage checker.
package keeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lox/faceworth/internal/tron"
)

const DefaultRefreshInterval = time.Second

// Chain is the node API the refresher reads from.
type Chain interface {
	GetBalance(ctx context.Context, addr tron.Address) (int64, error)
	GetCurrentBlock(ctx context.Context) (tron.Block, error)
}

// AccountSource supplies the address whose balance is shown.
type AccountSource interface {
	DefaultAddress() tron.Address
}

// Snapshot is the result of the latest refresh.
type Snapshot struct {
	Address   tron.Address
	Balance   int64 // SUN
	Block     tron.Block
	UpdatedAt time.Time
}

// BalanceTRX converts the balance to TRX.
func (s Snapshot) BalanceTRX() decimal.Decimal {
	return decimal.New(s.Balance, 0).Div(decimal.New(tron.SunPerTRX, 0))
}

// Loop is a running set of goroutines started by a keeper component.
type Loop struct {
	group *errgroup.Group
}

// Wait blocks until the loop stops. Cancellation is not an error.
func (l *Loop) Wait() error {
	err := l.group.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Refresher re-reads the account balance and the current block on a fixed
// interval and overwrites its snapshot each time.
type Refresher struct {
	chain    Chain
	account  AccountSource
	clock    quartz.Clock
	interval time.Duration
	logger   *log.Logger

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []func(Snapshot)
}

func NewRefresher(chain Chain, account AccountSource, clock quartz.Clock, interval time.Duration, logger *log.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		chain:    chain,
		account:  account,
		clock:    clock,
		interval: interval,
		logger:   logger.WithPrefix("refresh"),
	}
}

// Start runs Refresh on every tick until ctx ends.
func (r *Refresher) Start(ctx context.Context) *Loop {
	g := &errgroup.Group{}
	waiter := r.clock.TickerFunc(ctx, r.interval, func() error {
		r.Refresh(ctx)
		return nil
	}, "keeper", "refresh")
	g.Go(waiter.Wait)
	return &Loop{group: g}
}

// Refresh reads balance and block once. Failed reads are logged and keep the
// previous value.
func (r *Refresher) Refresh(ctx context.Context) Snapshot {
	addr := r.account.DefaultAddress()

	r.mu.RLock()
	next := r.snapshot
	r.mu.RUnlock()
	if next.Address != addr {
		next.Balance = 0
	}
	next.Address = addr

	if balance, err := r.chain.GetBalance(ctx, addr); err != nil {
		r.logger.Warn("Failed to read balance", "address", addr, "error", err)
	} else {
		next.Balance = balance
	}
	if block, err := r.chain.GetCurrentBlock(ctx); err != nil {
		r.logger.Warn("Failed to read current block", "error", err)
	} else {
		next.Block = block
	}
	next.UpdatedAt = r.clock.Now()

	r.mu.Lock()
	r.snapshot = next
	listeners := append([]func(Snapshot){}, r.listeners...)
	r.mu.Unlock()

	r.logger.Debug("Refreshed", "balance", next.BalanceTRX(), "block", next.Block.Number)
	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// Snapshot returns the latest refresh result.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// OnUpdate registers fn to run after each refresh.
func (r *Refresher) OnUpdate(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
