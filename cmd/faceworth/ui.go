package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lox/faceworth/cmd/faceworth/shared"
	"github.com/lox/faceworth/internal/client"
	"github.com/lox/faceworth/internal/tui"
)

type UICmd struct {
	LogFile string `type:"path" help:"Log file (defaults to ui.log_file)"`
}

func (c *UICmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := shared.SetupFileLogger(cfg, c.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := shared.SetupSignalHandler(context.Background(), logger)
	defer cancel()

	fmt.Fprintln(os.Stderr, "Looking for a wallet...")
	relay := &tui.Relay{}
	app, err := client.NewApp(ctx, cfg, logger, client.Options{Notifier: relay})
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Starting UI",
		"contract", cfg.Contract.Address,
		"node", app.Node.Endpoint(),
		"installed", app.Session.Status().Installed,
		"logged_in", app.Session.Status().LoggedIn)
	return tui.Run(ctx, app, relay)
}
