package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/wallet"
)

func TestGlobalsLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faceworth.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
node {
  url = "http://file:8090"
}
contract {
  address = "TWiWt5SEDzaEqS6kE5gandWMNfxR2B5xzg"
}
wallet {}
keeper {}
poll {}
ui {}
`), 0o600))

	t.Run("file values", func(t *testing.T) {
		g := &Globals{Config: path}
		cfg, err := g.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://file:8090", cfg.Node.URL)
		assert.Equal(t, wallet.FallbackEndpoint, cfg.Wallet.FallbackURL)
		assert.Equal(t, "info", cfg.UI.LogLevel)
	})

	t.Run("flags override the file", func(t *testing.T) {
		g := &Globals{Config: path, Node: "http://flag:8090", LogLevel: "debug"}
		cfg, err := g.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://flag:8090", cfg.Node.URL)
		assert.Equal(t, "debug", cfg.UI.LogLevel)

		// Without a wallet the session uses the fallback, so the flag
		// must reach it too.
		boot := cfg.BootstrapConfig()
		assert.Equal(t, "http://flag:8090", boot.NodeEndpoint)
		assert.Equal(t, "http://flag:8090", boot.FallbackEndpoint)
		assert.NoError(t, cfg.Validate())
	})
}

func TestScoreValidation(t *testing.T) {
	assert.NoError(t, (&CommitCmd{ScoreFlags{Score: -1}}).Validate())
	assert.NoError(t, (&CommitCmd{ScoreFlags{Score: 5}}).Validate())
	assert.Error(t, (&CommitCmd{ScoreFlags{Score: 256}}).Validate())

	assert.Error(t, (&RevealCmd{ScoreFlags{Score: -1}}).Validate())
	assert.NoError(t, (&RevealCmd{ScoreFlags{Score: 0}}).Validate())
}

func TestCLIParses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"commit", "0xabc", "--score", "3", "--contract", "TX"})
	require.NoError(t, err)
	assert.Equal(t, "commit <hash>", ctx.Command())
	assert.Equal(t, "0xabc", cli.Commit.Hash)
	assert.Equal(t, 3, cli.Commit.Score)
	assert.Equal(t, "TX", cli.Contract)

	_, err = parser.Parse([]string{"reveal", "0xabc"})
	assert.ErrorContains(t, err, "score")
}

func TestPrintAlerts(t *testing.T) {
	var out bytes.Buffer
	n := printAlerts(&out)
	n.Notify(poll.Alert{Level: poll.AlertInfo, Title: "It's ended"})
	n.Notify(poll.Alert{Level: poll.AlertSuccess, Title: "Commit sent", Text: "txid ab"})
	assert.Equal(t, "info: It's ended\nsuccess: Commit sent (txid ab)\n", out.String())
}
