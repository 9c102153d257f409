package contract

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/faceworth/internal/tron"
	"github.com/lox/faceworth/internal/tron/trontest"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func testAddr(seed byte) tron.Address {
	var a tron.Address
	a[0] = tron.AddressPrefix
	a[20] = seed
	return a
}

type fakeAccount struct {
	addr    tron.Address
	signErr error
	signed  int
}

func (a *fakeAccount) DefaultAddress() tron.Address { return a.addr }

func (a *fakeAccount) SignTransaction(_ context.Context, tx *tron.Transaction) error {
	if a.signErr != nil {
		return a.signErr
	}
	a.signed++
	tx.AddSignature(make([]byte, 65))
	return nil
}

func setupFaceWorth(t *testing.T) (*FaceWorth, *trontest.Node, *fakeAccount, abi.ABI) {
	t.Helper()
	parsed, err := FaceWorthABI()
	require.NoError(t, err)

	node := trontest.NewNode(t)
	account := &fakeAccount{addr: testAddr(1)}
	gw := NewGateway(tron.NewClient(node.URL(), quietLogger()), account, parsed, testAddr(99), WithLogger(quietLogger()))
	return NewFaceWorth(gw), node, account, parsed
}

// answer packs values as the outputs of method.
func answer(t *testing.T, parsed abi.ABI, method string, values ...any) trontest.ConstantFunc {
	return func(tron.Address, []byte) ([]byte, error) {
		out, err := parsed.Methods[method].Outputs.Pack(values...)
		assert.NoError(t, err)
		return out, err
	}
}

func TestFaceWorthABI(t *testing.T) {
	parsed, err := FaceWorthABI()
	require.NoError(t, err)

	for _, m := range []string{
		MethodCreateFaceWorthPoll, MethodCommit, MethodReveal, MethodCheckBlockNumber,
		MethodStake, MethodGetCurrentStage, MethodGetNumberOfParticipants,
		MethodGetCommitTimeElapsed, MethodGetRevealTimeElapsed, MethodGetParticipants,
		MethodGetWorthBy, MethodGetWinners,
	} {
		assert.Contains(t, parsed.Methods, m)
	}
	assert.Contains(t, parsed.Events, EventFaceWorthPollCreated)
	assert.Contains(t, parsed.Events, EventStageChange)
	assert.Equal(t, "checkBlockNumber(bytes32)", parsed.Methods[MethodCheckBlockNumber].Sig)
}

func TestGatewayCall(t *testing.T) {
	fw, node, _, parsed := setupFaceWorth(t)
	ctx := context.Background()
	poll := tron.Keccak([]byte("poll"))

	t.Run("stake", func(t *testing.T) {
		node.HandleConstant("stake()", answer(t, parsed, MethodStake, big.NewInt(10_000_000)))

		stake, err := fw.Stake(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(10_000_000), stake)
	})

	t.Run("stage reads the poll hash argument", func(t *testing.T) {
		node.HandleConstant("getCurrentStage(bytes32)", func(owner tron.Address, params []byte) ([]byte, error) {
			assert.Equal(t, testAddr(1), owner)
			args, err := parsed.Methods[MethodGetCurrentStage].Inputs.Unpack(params)
			if assert.NoError(t, err) {
				assert.Equal(t, [32]byte(poll), args[0])
			}
			return parsed.Methods[MethodGetCurrentStage].Outputs.Pack(uint8(Reveal))
		})

		stage, err := fw.CurrentStage(ctx, poll)
		require.NoError(t, err)
		assert.Equal(t, Reveal, stage)
	})

	t.Run("participants", func(t *testing.T) {
		node.HandleConstant("getParticipants(bytes32)", answer(t, parsed, MethodGetParticipants,
			[]common.Address{testAddr(5).EVM(), testAddr(6).EVM()}))

		participants, err := fw.Participants(ctx, poll)
		require.NoError(t, err)
		assert.Equal(t, []tron.Address{testAddr(5), testAddr(6)}, participants)
	})

	t.Run("worth by participant", func(t *testing.T) {
		node.HandleConstant("getWorthBy(bytes32,address)", answer(t, parsed, MethodGetWorthBy, uint8(4)))

		worth, err := fw.WorthBy(ctx, poll, testAddr(5))
		require.NoError(t, err)
		assert.Equal(t, uint8(4), worth)
	})

	t.Run("elapsed flags", func(t *testing.T) {
		node.HandleConstant("getCommitTimeElapsed(bytes32)", answer(t, parsed, MethodGetCommitTimeElapsed, true))
		node.HandleConstant("getRevealTimeElapsed(bytes32)", answer(t, parsed, MethodGetRevealTimeElapsed, false))

		commit, err := fw.CommitTimeElapsed(ctx, poll)
		require.NoError(t, err)
		assert.True(t, commit)

		reveal, err := fw.RevealTimeElapsed(ctx, poll)
		require.NoError(t, err)
		assert.False(t, reveal)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := fw.Gateway().Call(ctx, "selfDestruct")
		assert.ErrorIs(t, err, ErrUnknownMethod)
	})
}

func TestGatewaySend(t *testing.T) {
	fw, node, account, parsed := setupFaceWorth(t)
	ctx := context.Background()
	poll := tron.Keccak([]byte("poll"))

	t.Run("commit carries stake and fixed fee limit", func(t *testing.T) {
		txid, err := fw.Commit(ctx, poll, tron.Keccak([]byte("random3")), 10_000_000)
		require.NoError(t, err)
		assert.NotEmpty(t, txid)

		triggers := node.Triggers()
		require.Len(t, triggers, 1)
		assert.Equal(t, "commit(bytes32,bytes32)", triggers[0].FunctionSelector)
		assert.Equal(t, int64(10_000_000), triggers[0].CallValue)
		assert.Equal(t, DefaultFeeLimit, triggers[0].FeeLimit)
		assert.Equal(t, testAddr(99), triggers[0].ContractAddress)
		assert.Equal(t, 1, account.signed)
		assert.Len(t, node.Broadcasts(), 1)
	})

	t.Run("create poll sends zero value", func(t *testing.T) {
		_, err := fw.CreateFaceWorthPoll(ctx, tron.Keccak([]byte("face")), 10, 10)
		require.NoError(t, err)

		triggers := node.Triggers()
		last := triggers[len(triggers)-1]
		assert.Equal(t, "createFaceWorthPoll(bytes32,uint256,uint256)", last.FunctionSelector)
		assert.Zero(t, last.CallValue)
		assert.Equal(t, DefaultFeeLimit, last.FeeLimit)
	})

	t.Run("reveal sends exactly one zero value trigger", func(t *testing.T) {
		before := len(node.Triggers())
		broadcasts := len(node.Broadcasts())

		txid, err := fw.Reveal(ctx, poll, "random", 3)
		require.NoError(t, err)
		assert.NotEmpty(t, txid)

		triggers := node.Triggers()[before:]
		require.Len(t, triggers, 1)
		reveal := triggers[0]
		assert.Equal(t, "reveal(bytes32,string,uint8)", reveal.FunctionSelector)
		assert.Zero(t, reveal.CallValue)
		assert.Equal(t, DefaultFeeLimit, reveal.FeeLimit)
		assert.Len(t, node.Broadcasts(), broadcasts+1)

		raw, err := hex.DecodeString(reveal.Parameter)
		require.NoError(t, err)
		args, err := parsed.Methods[MethodReveal].Inputs.Unpack(raw)
		require.NoError(t, err)
		assert.Equal(t, []any{[32]byte(poll), "random", uint8(3)}, args)
	})

	t.Run("signing failure stops the broadcast", func(t *testing.T) {
		before := len(node.Broadcasts())
		account.signErr = errors.New("user rejected")
		defer func() { account.signErr = nil }()

		_, err := fw.CheckBlockNumber(ctx, poll)
		assert.ErrorContains(t, err, "user rejected")
		assert.Len(t, node.Broadcasts(), before)
	})

	t.Run("node rejection surfaces as error", func(t *testing.T) {
		node.FailTrigger("CONTRACT_VALIDATE_ERROR", "poll not in reveal stage")
		_, err := fw.Reveal(ctx, poll, "random", 3)

		var nodeErr *tron.NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, "poll not in reveal stage", nodeErr.Message)
	})
}

func TestGatewayFeeLimitOption(t *testing.T) {
	parsed, err := FaceWorthABI()
	require.NoError(t, err)
	node := trontest.NewNode(t)
	gw := NewGateway(tron.NewClient(node.URL(), quietLogger()), &fakeAccount{addr: testAddr(1)}, parsed, testAddr(99),
		WithFeeLimit(50_000_000), WithLogger(quietLogger()))

	_, err = NewFaceWorth(gw).CheckBlockNumber(context.Background(), tron.Keccak([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), node.Triggers()[0].FeeLimit)
}
