package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lox/faceworth/cmd/faceworth/shared"
	"github.com/lox/faceworth/internal/client"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/tron"
)

// openApp builds an app for a one-shot command. Alerts are printed to out.
func openApp(g *Globals, out io.Writer) (*client.App, context.Context, context.CancelFunc, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := shared.SetupLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := shared.SetupSignalHandler(context.Background(), logger)
	app, err := client.NewApp(ctx, cfg, logger, client.Options{Notifier: printAlerts(out)})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return app, ctx, cancel, nil
}

func printAlerts(w io.Writer) poll.Notifier {
	return poll.NotifierFunc(func(a poll.Alert) {
		if a.Text == "" {
			fmt.Fprintf(w, "%s: %s\n", a.Level, a.Title)
			return
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", a.Level, a.Title, a.Text)
	})
}

type CreateCmd struct {
	Photo        string `required:"" help:"Photo text to hash"`
	RevealBlocks int    `help:"Blocks before reveal (defaults to poll.blocks_before_reveal)"`
	EndBlocks    int    `help:"Blocks before end (defaults to poll.blocks_before_end)"`
}

func (c *CreateCmd) Run(g *Globals) error {
	app, ctx, cancel, err := openApp(g, os.Stdout)
	if err != nil {
		return err
	}
	defer cancel()
	defer app.Close()

	if c.RevealBlocks > 0 || c.EndBlocks > 0 {
		state := app.Form.State()
		reveal, end := state.BlocksBeforeReveal, state.BlocksBeforeEnd
		if c.RevealBlocks > 0 {
			reveal = c.RevealBlocks
		}
		if c.EndBlocks > 0 {
			end = c.EndBlocks
		}
		if err := app.Form.SetBlocks(reveal, end); err != nil {
			return err
		}
	}

	app.Form.SetPhoto(c.Photo)
	fmt.Printf("face hash: %s\n", app.Form.State().FaceHash)
	_, err = app.Form.Submit(ctx)
	return err
}

// ScoreFlags are shared by commit and reveal.
type ScoreFlags struct {
	Hash  string `arg:"" help:"Poll hash (0x...)"`
	Score int    `default:"-1" help:"Worth score"`
}

func (f *ScoreFlags) pollHash() (tron.Hash, error) {
	return tron.ParseHash(f.Hash)
}

func (f *ScoreFlags) validate(allowRandom bool) error {
	if f.Score == -1 && allowRandom {
		return nil
	}
	if f.Score < 0 || f.Score > 255 {
		return fmt.Errorf("score must be between 0 and 255, got %d", f.Score)
	}
	return nil
}

type CommitCmd struct {
	ScoreFlags `embed:""`
}

func (c *CommitCmd) Validate() error {
	return c.validate(true)
}

func (c *CommitCmd) Run(g *Globals) error {
	hash, err := c.pollHash()
	if err != nil {
		return err
	}
	score := uint8(c.Score)
	if c.Score < 0 {
		score = poll.RandomScore()
	}

	app, ctx, cancel, err := openApp(g, os.Stdout)
	if err != nil {
		return err
	}
	defer cancel()
	defer app.Close()

	fmt.Printf("score: %d (keep it to reveal)\n", score)
	_, err = app.Actions.Commit(ctx, hash, score)
	return err
}

type RevealCmd struct {
	ScoreFlags `embed:""`
}

func (c *RevealCmd) Validate() error {
	return c.validate(false)
}

func (c *RevealCmd) Run(g *Globals) error {
	hash, err := c.pollHash()
	if err != nil {
		return err
	}

	app, ctx, cancel, err := openApp(g, os.Stdout)
	if err != nil {
		return err
	}
	defer cancel()
	defer app.Close()

	_, err = app.Actions.Reveal(ctx, hash, uint8(c.Score))
	return err
}

type StageCmd struct {
	Hash string `arg:"" help:"Poll hash (0x...)"`
}

func (c *StageCmd) Run(g *Globals) error {
	hash, err := tron.ParseHash(c.Hash)
	if err != nil {
		return err
	}

	app, ctx, cancel, err := openApp(g, os.Stdout)
	if err != nil {
		return err
	}
	defer cancel()
	defer app.Close()

	fw := app.FaceWorth
	stage, err := fw.CurrentStage(ctx, hash)
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Poll", tron.Shorten(hash.Hex()))
	t.Row("Stage", stage.String())

	count, err := fw.NumberOfParticipants(ctx, hash)
	t.Row("Participants", orError(fmt.Sprint(count), err))
	commitElapsed, err := fw.CommitTimeElapsed(ctx, hash)
	t.Row("Commit elapsed", orError(fmt.Sprint(commitElapsed), err))
	revealElapsed, err := fw.RevealTimeElapsed(ctx, hash)
	t.Row("Reveal elapsed", orError(fmt.Sprint(revealElapsed), err))

	participants, err := fw.Participants(ctx, hash)
	t.Row("Addresses", orError(joinAddresses(participants), err))
	if stage.Finished() {
		winners, err := fw.Winners(ctx, hash)
		t.Row("Winners", orError(joinAddresses(winners), err))
	}

	if app.Session.Status().LoggedIn {
		me := app.Session.DefaultAddress()
		worth, err := fw.WorthBy(ctx, hash, me)
		t.Row("Worth by "+me.Short(), orError(fmt.Sprint(worth), err))
	}

	fmt.Println(t.Render())
	return nil
}

func orError(value string, err error) string {
	if err == nil {
		return value
	}
	var nodeErr *tron.NodeError
	if errors.As(err, &nodeErr) {
		return "unavailable: " + nodeErr.Message
	}
	return "error: " + err.Error()
}

func joinAddresses(addrs []tron.Address) string {
	if len(addrs) == 0 {
		return "-"
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Base58()
	}
	return strings.Join(out, "\n")
}
