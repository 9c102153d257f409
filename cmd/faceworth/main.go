package main

import (
	"github.com/alecthomas/kong"

	"github.com/lox/faceworth/internal/client"
)

// version is set by ldflags during build
var version = "dev"

// Globals are shared by every command.
type Globals struct {
	Config   string   `short:"c" default:"faceworth.hcl" type:"path" help:"HCL config file"`
	EnvFile  []string `default:".env" help:"Env files to load secrets from"`
	LogLevel string   `help:"Override ui.log_level (debug, info, warn, error)"`
	Contract string   `help:"Override contract.address"`
	Node     string   `help:"Override node.url and wallet.fallback_url"`
}

// LoadConfig reads env files and the config file, then applies flag
// overrides.
func (g *Globals) LoadConfig() (*client.Config, error) {
	if err := client.LoadEnv(g.EnvFile...); err != nil {
		return nil, err
	}
	cfg, err := client.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}

	if g.Contract != "" {
		cfg.Contract.Address = g.Contract
	}
	// An explicit node is used with or without a wallet.
	if g.Node != "" {
		cfg.Node.URL = g.Node
		cfg.Wallet.FallbackURL = g.Node
	}
	if g.LogLevel != "" {
		cfg.UI.LogLevel = g.LogLevel
	}
	return cfg, nil
}

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	UI      UICmd            `cmd:"" default:"withargs" help:"Run the interactive terminal client"`
	Keeper  KeeperCmd        `cmd:"" help:"Sync polls and keep their stages moving"`
	Create  CreateCmd        `cmd:"" help:"Create a FacePoll"`
	Commit  CommitCmd        `cmd:"" help:"Commit a worth score to a poll"`
	Reveal  RevealCmd        `cmd:"" help:"Reveal a committed worth score"`
	Stage   StageCmd         `cmd:"" help:"Show a poll's stage and participants"`
	Signer  SignerCmd        `cmd:"" help:"Serve a local key as a bridge wallet"`
	Init    InitCmd          `cmd:"" help:"Write a default config file"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("faceworth"),
		kong.Description("Commit-reveal face worth polls on TRON"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
