package client

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/faceworth/internal/contract"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/tron"
	"github.com/lox/faceworth/internal/tron/trontest"
	"github.com/lox/faceworth/internal/wallet"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func answer(t *testing.T, method string, values ...any) trontest.ConstantFunc {
	parsed, err := contract.FaceWorthABI()
	require.NoError(t, err)
	return func(tron.Address, []byte) ([]byte, error) {
		out, err := parsed.Methods[method].Outputs.Pack(values...)
		assert.NoError(t, err)
		return out, err
	}
}

func testConfig(node *trontest.Node) *Config {
	cfg := DefaultConfig()
	cfg.Node.URL = node.URL()
	cfg.Wallet.FallbackURL = node.URL()
	cfg.Contract.Address = testContract
	return cfg
}

func triggered(node *trontest.Node, selector string) []tron.TriggerRequest {
	var out []tron.TriggerRequest
	for _, req := range node.Triggers() {
		if req.FunctionSelector == selector {
			out = append(out, req)
		}
	}
	return out
}

func TestAppWithLocalWallet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	node := trontest.NewNode(t)
	node.HandleConstant("stake()", answer(t, "stake", big.NewInt(1000)))
	node.HandleConstant("getCurrentStage(bytes32)", answer(t, "getCurrentStage", uint8(contract.Commit)))

	local, err := wallet.NewLocalWallet(testKey)
	require.NoError(t, err)
	node.SetBalance(local.Address(), 3_000_000)
	node.SetBlock(500, 1)

	clock := quartz.NewMock(t)
	alerts := &poll.AlertLog{}
	app, err := NewApp(ctx, testConfig(node), quietLogger(), Options{
		Clock:    clock,
		Probe:    wallet.LocalProbe(testKey),
		Notifier: alerts,
	})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, wallet.Status{Installed: true, LoggedIn: true}, app.Session.Status())
	assert.Equal(t, local.Address(), app.Session.DefaultAddress())

	t.Run("form submission is signed and broadcast", func(t *testing.T) {
		app.Form.SetPhoto("a face")
		txID, err := app.Form.Submit(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, txID)

		creates := triggered(node, "createFaceWorthPoll(bytes32,uint256,uint256)")
		require.Len(t, creates, 1)
		assert.Zero(t, creates[0].CallValue)
		assert.Equal(t, contract.DefaultFeeLimit, creates[0].FeeLimit)

		last, _ := alerts.Last()
		assert.Equal(t, "FacePoll created", last.Title)
		assert.Equal(t, "txid "+txID, last.Text)
	})

	t.Run("commit pays the stake", func(t *testing.T) {
		_, err := app.Actions.Commit(ctx, tron.Keccak([]byte("poll")), 2)
		require.NoError(t, err)

		commits := triggered(node, "commit(bytes32,bytes32)")
		require.Len(t, commits, 1)
		assert.Equal(t, int64(1000), commits[0].CallValue)
	})

	t.Run("loops sync events, balance and stages", func(t *testing.T) {
		start := clock.Now().UnixMilli()
		pollHash := tron.Keccak([]byte("observed"))
		node.AddEvent(tron.Event{
			EventName:      contract.EventFaceWorthPollCreated,
			BlockTimestamp: start + 10,
			BlockNumber:    501,
			TransactionID:  "ab",
			Result: tron.EventResult{
				"hash":              pollHash.Hex(),
				"creator":           local.Address().Hex(),
				"faceHash":          tron.Keccak([]byte("face")).Hex(),
				"startingBlock":     "501",
				"commitEndingBlock": "511",
				"revealEndingBlock": "521",
			},
		})

		loops := app.Start(ctx)
		for i := 0; i < 6; i++ {
			clock.Advance(time.Second).MustWait(ctx)
		}

		require.Equal(t, 1, app.Book.Len())
		assert.Equal(t, pollHash, app.Book.Snapshot()[0].Hash)

		snap := app.Keeper.Refresher.Snapshot()
		assert.Equal(t, int64(3_000_000), snap.Balance)
		assert.Equal(t, uint64(500), snap.Block.Number)

		require.Eventually(t, func() bool {
			return len(triggered(node, "checkBlockNumber(bytes32)")) > 0
		}, 5*time.Second, 5*time.Millisecond)

		cancel()
		assert.NoError(t, loops.Wait())
	})
}

func TestAppReadOnlyFallback(t *testing.T) {
	ctx := context.Background()
	node := trontest.NewNode(t)
	node.HandleConstant("stake()", answer(t, "stake", big.NewInt(1000)))

	cfg := testConfig(node)
	cfg.Wallet.DetectInterval = "1ms"
	cfg.Wallet.DetectTries = 2

	alerts := &poll.AlertLog{}
	app, err := NewApp(ctx, cfg, quietLogger(), Options{
		Clock:    quartz.NewReal(),
		Probe:    func(context.Context) (wallet.Wallet, error) { return nil, wallet.ErrNotInstalled },
		Notifier: alerts,
	})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, wallet.Status{}, app.Session.Status())
	assert.Equal(t, node.URL(), app.Node.Endpoint())
	assert.Equal(t, testContract, app.Session.DefaultAddress().Base58())

	// Reads work anonymously, writes fail with one failure alert.
	stake, err := app.FaceWorth.Stake(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stake)

	app.Form.SetPhoto("a face")
	_, err = app.Form.Submit(ctx)
	assert.ErrorIs(t, err, wallet.ErrReadOnly)
	assert.Equal(t, []poll.Alert{{Level: poll.AlertError, Title: "FacePoll creation failed"}}, alerts.Alerts())
	assert.Empty(t, node.Broadcasts())

	// No wallet, no stage checks.
	assert.Zero(t, app.Keeper.Checker.Enqueue())
}

func TestAppRevealSendsZeroValue(t *testing.T) {
	ctx := context.Background()
	node := trontest.NewNode(t)
	node.HandleConstant("getCurrentStage(bytes32)", answer(t, "getCurrentStage", uint8(contract.Reveal)))

	app, err := NewApp(ctx, testConfig(node), quietLogger(), Options{
		Clock:    quartz.NewMock(t),
		Probe:    wallet.LocalProbe(testKey),
		Notifier: &poll.AlertLog{},
	})
	require.NoError(t, err)
	defer app.Close()

	txID, err := app.Actions.Reveal(ctx, tron.Keccak([]byte("poll")), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, txID)

	reveals := triggered(node, "reveal(bytes32,string,uint8)")
	require.Len(t, reveals, 1)
	assert.Zero(t, reveals[0].CallValue)
	assert.Equal(t, contract.DefaultFeeLimit, reveals[0].FeeLimit)
	assert.Len(t, node.Broadcasts(), 1)
}

func TestAppMalformedKeyIsReported(t *testing.T) {
	node := trontest.NewNode(t)
	cfg := testConfig(node)
	cfg.Wallet.DetectInterval = "1ms"
	cfg.Wallet.DetectTries = 2

	_, err := NewApp(context.Background(), cfg, quietLogger(), Options{
		Clock: quartz.NewReal(),
		Probe: wallet.FirstOf(
			wallet.LocalProbe("zz"),
			func(context.Context) (wallet.Wallet, error) { return nil, wallet.ErrNotInstalled },
		),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "wallet bootstrap")
	assert.ErrorContains(t, err, "invalid private key")
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	_, err := NewApp(context.Background(), DefaultConfig(), quietLogger(), Options{})
	assert.ErrorContains(t, err, "invalid config")
}
