package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/faceworth/internal/client"
	"github.com/lox/faceworth/internal/keeper"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/wallet"
)

// Sender accepts messages for a running program.
type Sender interface {
	Send(msg tea.Msg)
}

// Relay forwards alerts and background updates to a program. Messages sent
// before Attach are buffered and delivered on attach.
type Relay struct {
	mu      sync.Mutex
	program Sender
	pending []tea.Msg
}

// Notify implements poll.Notifier.
func (r *Relay) Notify(a poll.Alert) {
	r.Send(AlertMsg(a))
}

func (r *Relay) Send(msg tea.Msg) {
	r.mu.Lock()
	if r.program == nil {
		r.pending = append(r.pending, msg)
		r.mu.Unlock()
		return
	}
	program := r.program
	r.mu.Unlock()

	program.Send(msg)
}

// Attach sets the destination and flushes buffered messages. It may block
// until the program is running.
func (r *Relay) Attach(program Sender) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.program = program
	r.mu.Unlock()

	for _, msg := range pending {
		program.Send(msg)
	}
}

// Run starts the app's loops and drives the terminal UI until the user quits
// or ctx ends. relay must be the notifier the app was built with.
func Run(ctx context.Context, app *client.App, relay *Relay) error {
	ApplyTheme(app.Config.UI.Theme)

	app.Book.OnAppend(func(p poll.ObservedPoll) { relay.Send(PollMsg(p)) })
	app.Keeper.Refresher.OnUpdate(func(s keeper.Snapshot) { relay.Send(SnapshotMsg(s)) })
	app.Session.OnStatusChange(func(s wallet.Status) { relay.Send(StatusMsg(s)) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(ctx, app.Form, app.Actions, app.Session.Status(), app.Logger)
	loops := app.Start(ctx)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	go relay.Attach(program)

	_, err := program.Run()
	cancel()
	if loopErr := loops.Wait(); loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		app.Logger.Error("Background loop failed", "error", loopErr)
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
