package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/internal/tron"
)

const (
	DefaultBlocksBeforeReveal = 10
	DefaultBlocksBeforeEnd    = 10
)

// ErrSubmitDisabled is returned by Submit when there is no photo or a
// submission is already running.
var ErrSubmitDisabled = errors.New("submission disabled")

// Creator is the part of the contract the form needs.
type Creator interface {
	Stake(ctx context.Context) (int64, error)
	CreateFaceWorthPoll(ctx context.Context, faceHash tron.Hash, blocksBeforeReveal, blocksBeforeEnd uint64) (string, error)
}

// PendingPoll is the state of the creation form.
type PendingPoll struct {
	FacePhoto          string
	FaceHash           string
	BlocksBeforeReveal int
	BlocksBeforeEnd    int
	Loading            bool
}

// Form builds and submits new polls.
type Form struct {
	creator  Creator
	notifier Notifier
	logger   *log.Logger

	mu    sync.Mutex
	state PendingPoll
}

func NewForm(creator Creator, notifier Notifier, logger *log.Logger) *Form {
	return &Form{
		creator:  creator,
		notifier: notifier,
		logger:   logger.WithPrefix("form"),
		state: PendingPoll{
			BlocksBeforeReveal: DefaultBlocksBeforeReveal,
			BlocksBeforeEnd:    DefaultBlocksBeforeEnd,
		},
	}
}

// State returns a copy of the form state.
func (f *Form) State() PendingPoll {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetPhoto updates the photo text and its hash.
func (f *Form) SetPhoto(photo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.FacePhoto = photo
	f.state.FaceHash = FaceHash(photo)
}

// SetBlocks sets the commit and reveal window lengths.
func (f *Form) SetBlocks(beforeReveal, beforeEnd int) error {
	if beforeReveal <= 0 || beforeEnd <= 0 {
		return fmt.Errorf("block counts must be positive, got %d and %d", beforeReveal, beforeEnd)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.BlocksBeforeReveal = beforeReveal
	f.state.BlocksBeforeEnd = beforeEnd
	return nil
}

// CanSubmit reports whether Submit would start a submission.
func (f *Form) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmit()
}

func (f *Form) canSubmit() bool {
	return f.state.FacePhoto != "" && !f.state.Loading
}

// Submit creates a poll from the current form state. Exactly one alert is
// shown per started submission, and the form is cleared afterwards whatever
// the outcome.
func (f *Form) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	if !f.canSubmit() {
		f.mu.Unlock()
		return "", ErrSubmitDisabled
	}
	f.state.Loading = true
	pending := f.state
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.state.Loading = false
		f.state.FacePhoto = ""
		f.state.FaceHash = ""
		f.mu.Unlock()
	}()

	txID, err := f.create(ctx, pending)
	if err != nil {
		f.logger.Error("FacePoll creation failed", "error", err)
		f.notifier.Notify(Alert{Level: AlertError, Title: "FacePoll creation failed"})
		return "", err
	}

	f.logger.Info("FacePoll created", "txid", txID)
	f.notifier.Notify(Alert{Level: AlertSuccess, Title: "FacePoll created", Text: "txid " + txID})
	return txID, nil
}

func (f *Form) create(ctx context.Context, pending PendingPoll) (string, error) {
	stake, err := f.creator.Stake(ctx)
	if err != nil {
		return "", fmt.Errorf("read stake: %w", err)
	}
	f.logger.Debug("Current stake", "sun", stake)

	faceHash, err := tron.ParseHash(pending.FaceHash)
	if err != nil {
		return "", fmt.Errorf("face hash: %w", err)
	}
	return f.creator.CreateFaceWorthPoll(ctx, faceHash,
		uint64(pending.BlocksBeforeReveal), uint64(pending.BlocksBeforeEnd))
}
