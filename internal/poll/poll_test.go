package poll

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/tron"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type commitCall struct {
	Poll   tron.Hash
	Salted tron.Hash
	Stake  int64
}

type revealCall struct {
	Poll  tron.Hash
	Salt  string
	Worth uint8
}

type createCall struct {
	FaceHash      tron.Hash
	Reveal, Ended uint64
}

// fakeContract records every send and answers reads from its fields.
type fakeContract struct {
	mu       sync.Mutex
	stage    contract.Stage
	stake    int64
	stakeErr error
	sendErr  error
	stageErr error

	stakeReads int
	creates    []createCall
	commits    []commitCall
	reveals    []revealCall
	// during is called from inside CreateFaceWorthPoll
	during func()
}

func (f *fakeContract) CurrentStage(context.Context, tron.Hash) (contract.Stage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage, f.stageErr
}

func (f *fakeContract) Stake(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stakeReads++
	return f.stake, f.stakeErr
}

func (f *fakeContract) CreateFaceWorthPoll(_ context.Context, faceHash tron.Hash, reveal, end uint64) (string, error) {
	if f.during != nil {
		f.during()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, createCall{faceHash, reveal, end})
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "create-tx", nil
}

func (f *fakeContract) Commit(_ context.Context, poll, salted tron.Hash, stake int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, commitCall{poll, salted, stake})
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "commit-tx", nil
}

func (f *fakeContract) Reveal(_ context.Context, poll tron.Hash, salt string, worth uint8) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reveals = append(f.reveals, revealCall{poll, salt, worth})
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "reveal-tx", nil
}

func TestFaceHash(t *testing.T) {
	assert.Empty(t, FaceHash(""))

	for _, photo := range []string{"a", "hello", " ", "ünïcödé face"} {
		h := FaceHash(photo)
		assert.Equal(t, tron.Keccak([]byte(photo)).Hex(), h, photo)
		assert.Len(t, h, 66)
	}

	assert.NotEqual(t, FaceHash("a"), FaceHash("b"))
}

func TestSaltedWorthHash(t *testing.T) {
	assert.Equal(t, tron.Keccak([]byte("random3")), SaltedWorthHash("random", 3))
	assert.Equal(t, tron.Keccak([]byte("pepper12")), SaltedWorthHash("pepper", 12))
}

func TestRandomScoreRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		assert.Less(t, RandomScore(), uint8(MaxScore))
	}
}

func TestFormSubmitGating(t *testing.T) {
	f := NewForm(&fakeContract{}, &AlertLog{}, quietLogger())

	state := f.State()
	assert.Equal(t, DefaultBlocksBeforeReveal, state.BlocksBeforeReveal)
	assert.Equal(t, DefaultBlocksBeforeEnd, state.BlocksBeforeEnd)
	assert.False(t, f.CanSubmit())

	f.SetPhoto("my face")
	assert.True(t, f.CanSubmit())
	assert.Equal(t, FaceHash("my face"), f.State().FaceHash)

	f.SetPhoto("")
	assert.False(t, f.CanSubmit())
	assert.Empty(t, f.State().FaceHash)

	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitDisabled)

	assert.Error(t, f.SetBlocks(0, 10))
	require.NoError(t, f.SetBlocks(5, 7))
	assert.Equal(t, 5, f.State().BlocksBeforeReveal)
	assert.Equal(t, 7, f.State().BlocksBeforeEnd)
}

func TestFormSubmit(t *testing.T) {
	t.Run("success shows one success alert", func(t *testing.T) {
		c := &fakeContract{stake: 50}
		alerts := &AlertLog{}
		f := NewForm(c, alerts, quietLogger())

		var loadingDuring, canSubmitDuring bool
		c.during = func() {
			loadingDuring = f.State().Loading
			canSubmitDuring = f.CanSubmit()
		}

		f.SetPhoto("face")
		txID, err := f.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "create-tx", txID)

		assert.True(t, loadingDuring)
		assert.False(t, canSubmitDuring)

		assert.Equal(t, 1, c.stakeReads)
		require.Len(t, c.creates, 1)
		assert.Equal(t, createCall{tron.Keccak([]byte("face")), 10, 10}, c.creates[0])

		assert.Equal(t, []Alert{{Level: AlertSuccess, Title: "FacePoll created", Text: "txid create-tx"}}, alerts.Alerts())

		state := f.State()
		assert.False(t, state.Loading)
		assert.Empty(t, state.FacePhoto)
		assert.Empty(t, state.FaceHash)
	})

	t.Run("send failure shows one failure alert", func(t *testing.T) {
		c := &fakeContract{sendErr: errors.New("REVERT")}
		alerts := &AlertLog{}
		f := NewForm(c, alerts, quietLogger())

		f.SetPhoto("face")
		_, err := f.Submit(context.Background())
		require.Error(t, err)

		assert.Equal(t, []Alert{{Level: AlertError, Title: "FacePoll creation failed"}}, alerts.Alerts())
		assert.False(t, f.State().Loading)
		assert.Empty(t, f.State().FacePhoto)
	})

	t.Run("stake failure skips the send", func(t *testing.T) {
		c := &fakeContract{stakeErr: errors.New("node down")}
		alerts := &AlertLog{}
		f := NewForm(c, alerts, quietLogger())

		f.SetPhoto("face")
		_, err := f.Submit(context.Background())
		require.Error(t, err)

		assert.Empty(t, c.creates)
		assert.Len(t, alerts.Alerts(), 1)
		assert.False(t, f.State().Loading)
	})
}

func TestCommit(t *testing.T) {
	poll := tron.Keccak([]byte("poll"))

	t.Run("commit stage pays the fresh stake", func(t *testing.T) {
		c := &fakeContract{stage: contract.Commit, stake: 1_000_000}
		alerts := &AlertLog{}
		a := NewActions(c, alerts, quietLogger())

		txID, err := a.Commit(context.Background(), poll, 4)
		require.NoError(t, err)
		assert.Equal(t, "commit-tx", txID)

		require.Len(t, c.commits, 1)
		assert.Equal(t, commitCall{poll, SaltedWorthHash(DefaultSalt, 4), 1_000_000}, c.commits[0])

		last, _ := alerts.Last()
		assert.Equal(t, AlertSuccess, last.Level)
		assert.Equal(t, "txid commit-tx", last.Text)
	})

	rejections := map[contract.Stage]string{
		contract.NotStarted: "Poll has not started",
		contract.Reveal:     "Commit stage passed",
		contract.Cancelled:  "It's cancelled",
		contract.Ended:      "It's ended",
	}
	for stage, msg := range rejections {
		t.Run("refused in "+stage.String(), func(t *testing.T) {
			c := &fakeContract{stage: stage, stake: 1}
			alerts := &AlertLog{}
			a := NewActions(c, alerts, quietLogger())

			txID, err := a.Commit(context.Background(), poll, 1)
			require.NoError(t, err)
			assert.Empty(t, txID)
			assert.Empty(t, c.commits)
			assert.Zero(t, c.stakeReads)
			assert.Equal(t, []Alert{{Level: AlertInfo, Title: msg}}, alerts.Alerts())
		})
	}

	t.Run("send failure", func(t *testing.T) {
		c := &fakeContract{stage: contract.Commit, sendErr: errors.New("out of energy")}
		alerts := &AlertLog{}
		a := NewActions(c, alerts, quietLogger())

		_, err := a.Commit(context.Background(), poll, 1)
		require.Error(t, err)
		last, _ := alerts.Last()
		assert.Equal(t, "Commit failed", last.Title)
		assert.Equal(t, AlertError, last.Level)
	})

	t.Run("custom salt", func(t *testing.T) {
		c := &fakeContract{stage: contract.Commit}
		a := NewActions(c, &AlertLog{}, quietLogger(), WithSalt("pepper"))

		_, err := a.Commit(context.Background(), poll, 2)
		require.NoError(t, err)
		assert.Equal(t, SaltedWorthHash("pepper", 2), c.commits[0].Salted)
	})
}

func TestReveal(t *testing.T) {
	poll := tron.Keccak([]byte("poll"))

	t.Run("reveal stage sends once", func(t *testing.T) {
		c := &fakeContract{stage: contract.Reveal}
		alerts := &AlertLog{}
		a := NewActions(c, alerts, quietLogger())

		txID, err := a.Reveal(context.Background(), poll, 5)
		require.NoError(t, err)
		assert.Equal(t, "reveal-tx", txID)
		assert.Equal(t, []revealCall{{poll, DefaultSalt, 5}}, c.reveals)
		assert.Len(t, alerts.Alerts(), 1)
	})

	rejections := map[contract.Stage]string{
		contract.NotStarted: "Poll has not started",
		contract.Commit:     "Reveal stage not started",
		contract.Cancelled:  "It's cancelled",
		contract.Ended:      "It's ended",
	}
	for stage, msg := range rejections {
		t.Run("refused in "+stage.String(), func(t *testing.T) {
			c := &fakeContract{stage: stage}
			alerts := &AlertLog{}
			a := NewActions(c, alerts, quietLogger())

			txID, err := a.Reveal(context.Background(), poll, 1)
			require.NoError(t, err)
			assert.Empty(t, txID)
			assert.Empty(t, c.reveals)
			assert.Equal(t, []Alert{{Level: AlertInfo, Title: msg}}, alerts.Alerts())
		})
	}

	t.Run("stage read failure", func(t *testing.T) {
		c := &fakeContract{stageErr: errors.New("timeout")}
		alerts := &AlertLog{}
		a := NewActions(c, alerts, quietLogger())

		_, err := a.Reveal(context.Background(), poll, 1)
		require.Error(t, err)
		assert.Empty(t, c.reveals)
		last, _ := alerts.Last()
		assert.Equal(t, "Reveal failed", last.Title)
	})
}
