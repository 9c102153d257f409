package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lox/faceworth/cmd/faceworth/shared"
	"github.com/lox/faceworth/internal/wallet"
)

// SignerCmd serves the private key from the environment over the wallet
// bridge protocol, so UI and keeper processes never hold the key.
type SignerCmd struct {
	Addr string `default:"127.0.0.1:9797" help:"Listen address"`
}

func (c *SignerCmd) Run(g *Globals) error {
	cfg, err := g.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := shared.SetupLogger(cfg)
	if err != nil {
		return err
	}

	var signer wallet.Signer
	if key := cfg.PrivateKey(); key != "" {
		local, err := wallet.NewLocalWallet(key)
		if err != nil {
			return err
		}
		signer = local
	} else {
		logger.Warn("No private key set, bridge starts locked", "env", cfg.Wallet.PrivateKeyEnv)
	}

	bridge := wallet.NewBridgeServer(signer, cfg.Node.URL, logger)
	defer bridge.Close()

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := shared.SetupSignalHandler(context.Background(), logger)
	defer cancel()

	attrs := []any{"address", c.Addr, "node", cfg.Node.URL}
	if signer != nil {
		attrs = append(attrs, "account", signer.Address())
	}
	logger.Info("Starting wallet bridge", attrs...)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down wallet bridge...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
