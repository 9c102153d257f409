package main

import (
	"fmt"
	"os"

	"github.com/lox/faceworth/internal/client"
)

// InitCmd writes a config file with every setting at its default.
type InitCmd struct {
	Force bool `help:"Overwrite an existing file"`
}

func (c *InitCmd) Run(g *Globals) error {
	if _, err := os.Stat(g.Config); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", g.Config)
	}

	cfg := client.DefaultConfig()
	if g.Contract != "" {
		cfg.Contract.Address = g.Contract
	}
	if g.Node != "" {
		cfg.Node.URL = g.Node
	}
	if err := client.WriteConfig(g.Config, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", g.Config)
	if cfg.Contract.Address == "" {
		fmt.Println("Set contract.address before running other commands.")
	}
	return nil
}
