// Package client wires configuration, wallet, chain client, contract binding
// and background loops into a running FaceWorth client.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/keeper"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/tron"
	"github.com/lox/faceworth/internal/wallet"
)

// Options replace the parts of an App that tests and commands customise.
type Options struct {
	Clock    quartz.Clock
	Probe    wallet.Probe
	Notifier poll.Notifier
}

// App is a fully wired client.
type App struct {
	Config    *Config
	Logger    *log.Logger
	Clock     quartz.Clock
	Session   *wallet.Session
	Node      *tron.Client
	FaceWorth *contract.FaceWorth
	Watcher   *contract.Watcher
	Book      *poll.Book
	Form      *poll.Form
	Actions   *poll.Actions
	Keeper    *keeper.Keeper
	Alerts    poll.Notifier
}

// NewApp detects the wallet and builds every component. It does not start
// any loop; see Run.
func NewApp(ctx context.Context, cfg *Config, logger *log.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	probe := opts.Probe
	if probe == nil {
		probe = wallet.FirstOf(
			wallet.LocalProbe(cfg.PrivateKey()),
			wallet.BridgeProbe(cfg.Wallet.BridgeURL, logger),
		)
	}
	alerts := opts.Notifier
	if alerts == nil {
		alerts = &poll.AlertLog{}
	}

	session, err := wallet.Bootstrap(ctx, probe, cfg.BootstrapConfig(), clock, logger)
	if err != nil {
		return nil, fmt.Errorf("wallet bootstrap: %w", err)
	}

	nodeOpts := []tron.Option{tron.WithTimeout(cfg.NodeTimeout())}
	if cfg.Node.APIKey != "" {
		nodeOpts = append(nodeOpts, tron.WithAPIKey(cfg.Node.APIKey))
	}
	if cfg.Node.EventURL != "" {
		nodeOpts = append(nodeOpts, tron.WithEventEndpoint(cfg.Node.EventURL))
	}
	node := tron.NewClient(session.Endpoint(), logger, nodeOpts...)

	parsed, err := contract.FaceWorthABI()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("parse ABI: %w", err)
	}
	gateway := contract.NewGateway(node, session, parsed, cfg.ContractAddress(),
		contract.WithFeeLimit(cfg.Contract.FeeLimit),
		contract.WithLogger(logger))
	faceWorth := contract.NewFaceWorth(gateway)

	watcherOpts := []contract.WatcherOption{contract.WithWatchInterval(cfg.WatchInterval())}
	if replay := cfg.ReplayFrom(); !replay.IsZero() {
		watcherOpts = append(watcherOpts, contract.WithReplayFrom(replay))
	}
	watcher, err := contract.NewWatcher(node, cfg.ContractAddress(), clock, logger, watcherOpts...)
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	book := poll.NewBook(logger)
	form := poll.NewForm(faceWorth, alerts, logger)
	if err := form.SetBlocks(cfg.Poll.BlocksBeforeReveal, cfg.Poll.BlocksBeforeEnd); err != nil {
		_ = session.Close()
		return nil, err
	}
	actions := poll.NewActions(faceWorth, alerts, logger, poll.WithSalt(cfg.Poll.Salt))

	refresher := keeper.NewRefresher(node, session, clock, cfg.RefreshInterval(), logger)
	checker := keeper.NewStageChecker(faceWorth, book, clock, cfg.CheckerConfig(), logger)
	checker.SetGate(session.CanSign)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Clock:     clock,
		Session:   session,
		Node:      node,
		FaceWorth: faceWorth,
		Watcher:   watcher,
		Book:      book,
		Form:      form,
		Actions:   actions,
		Keeper:    keeper.New(refresher, checker, logger),
		Alerts:    alerts,
	}, nil
}

// Start subscribes to contract events and starts the keeper loops. Wait on
// the returned group; it finishes when ctx ends.
func (a *App) Start(ctx context.Context) *errgroup.Group {
	g := a.subscribe(ctx)
	loops := a.Keeper.Start(ctx)
	g.Go(loops.Wait)
	return g
}

// Run blocks until ctx ends, then logs the keeper's counters.
func (a *App) Run(ctx context.Context) error {
	g := a.subscribe(ctx)
	g.Go(func() error { return a.Keeper.Run(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) subscribe(ctx context.Context) *errgroup.Group {
	g := &errgroup.Group{}
	created := a.Watcher.Subscribe(ctx, contract.EventFaceWorthPollCreated, a.Book.HandlePollCreated)
	stages := a.Watcher.Subscribe(ctx, contract.EventStageChange, a.Book.HandleStageChange)
	g.Go(created.Wait)
	g.Go(stages.Wait)
	return g
}

// Close releases the wallet connection.
func (a *App) Close() error {
	return a.Session.Close()
}
