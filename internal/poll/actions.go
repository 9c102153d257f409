package poll

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/tron"
)

// Voter is the part of the contract commit and reveal need.
type Voter interface {
	CurrentStage(ctx context.Context, poll tron.Hash) (contract.Stage, error)
	Stake(ctx context.Context) (int64, error)
	Commit(ctx context.Context, poll tron.Hash, saltedWorth tron.Hash, stake int64) (string, error)
	Reveal(ctx context.Context, poll tron.Hash, salt string, worth uint8) (string, error)
}

// Actions commits and reveals worth scores. The stage is read from the
// contract before each action and anything the contract would reject is
// refused locally with an informational alert.
type Actions struct {
	voter    Voter
	notifier Notifier
	logger   *log.Logger
	salt     string
}

type ActionsOption func(*Actions)

func WithSalt(salt string) ActionsOption {
	return func(a *Actions) {
		a.salt = salt
	}
}

func NewActions(voter Voter, notifier Notifier, logger *log.Logger, opts ...ActionsOption) *Actions {
	a := &Actions{
		voter:    voter,
		notifier: notifier,
		logger:   logger.WithPrefix("actions"),
		salt:     DefaultSalt,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var commitRejections = map[contract.Stage]string{
	contract.NotStarted: "Poll has not started",
	contract.Reveal:     "Commit stage passed",
	contract.Cancelled:  "It's cancelled",
	contract.Ended:      "It's ended",
}

var revealRejections = map[contract.Stage]string{
	contract.NotStarted: "Poll has not started",
	contract.Commit:     "Reveal stage not started",
	contract.Cancelled:  "It's cancelled",
	contract.Ended:      "It's ended",
}

// Commit pays the stake and commits the salted score. It returns an empty
// transaction id and no error when the poll is not in its commit stage.
func (a *Actions) Commit(ctx context.Context, poll tron.Hash, score uint8) (string, error) {
	stage, err := a.voter.CurrentStage(ctx, poll)
	if err != nil {
		return "", a.fail("Commit failed", poll, fmt.Errorf("read stage: %w", err))
	}
	if stage != contract.Commit {
		a.reject(commitRejections, stage, poll)
		return "", nil
	}

	stake, err := a.voter.Stake(ctx)
	if err != nil {
		return "", a.fail("Commit failed", poll, fmt.Errorf("read stake: %w", err))
	}

	txID, err := a.voter.Commit(ctx, poll, SaltedWorthHash(a.salt, score), stake)
	if err != nil {
		return "", a.fail("Commit failed", poll, err)
	}

	a.logger.Info("Committed worth", "poll", poll, "stake", stake, "txid", txID)
	a.notifier.Notify(Alert{Level: AlertSuccess, Title: "Commit sent", Text: "txid " + txID})
	return txID, nil
}

// Reveal discloses the committed score. It returns an empty transaction id
// and no error when the poll is not in its reveal stage.
func (a *Actions) Reveal(ctx context.Context, poll tron.Hash, score uint8) (string, error) {
	stage, err := a.voter.CurrentStage(ctx, poll)
	if err != nil {
		return "", a.fail("Reveal failed", poll, fmt.Errorf("read stage: %w", err))
	}
	if stage != contract.Reveal {
		a.reject(revealRejections, stage, poll)
		return "", nil
	}

	txID, err := a.voter.Reveal(ctx, poll, a.salt, score)
	if err != nil {
		return "", a.fail("Reveal failed", poll, err)
	}

	a.logger.Info("Revealed worth", "poll", poll, "txid", txID)
	a.notifier.Notify(Alert{Level: AlertSuccess, Title: "Reveal sent", Text: "txid " + txID})
	return txID, nil
}

func (a *Actions) reject(messages map[contract.Stage]string, stage contract.Stage, poll tron.Hash) {
	msg, ok := messages[stage]
	if !ok {
		msg = fmt.Sprintf("Unexpected stage %s", stage)
	}
	a.logger.Debug("Action refused", "poll", poll, "stage", stage)
	a.notifier.Notify(Alert{Level: AlertInfo, Title: msg})
}

func (a *Actions) fail(title string, poll tron.Hash, err error) error {
	a.logger.Error(title, "poll", poll, "error", err)
	a.notifier.Notify(Alert{Level: AlertError, Title: title, Text: err.Error()})
	return err
}
