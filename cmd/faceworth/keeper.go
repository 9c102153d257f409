package main

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/cmd/faceworth/shared"
	"github.com/lox/faceworth/internal/client"
	"github.com/lox/faceworth/internal/poll"
)

// KeeperCmd runs the background loops without a UI.
type KeeperCmd struct{}

func (c *KeeperCmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := shared.SetupLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := shared.SetupSignalHandler(context.Background(), logger)
	defer cancel()

	app, err := client.NewApp(ctx, cfg, logger, client.Options{Notifier: logAlerts(logger)})
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.Session.Status().LoggedIn {
		logger.Warn("No wallet logged in, stage checks wait for one")
	}
	logger.Info("Starting keeper",
		"contract", cfg.Contract.Address,
		"node", app.Node.Endpoint(),
		"address", app.Session.DefaultAddress(),
		"workers", cfg.Keeper.Workers)

	return app.Run(ctx)
}

func logAlerts(logger *log.Logger) poll.Notifier {
	return poll.NotifierFunc(func(a poll.Alert) {
		switch a.Level {
		case poll.AlertError:
			logger.Error(a.Title, "detail", a.Text)
		default:
			logger.Info(a.Title, "detail", a.Text)
		}
	})
}
