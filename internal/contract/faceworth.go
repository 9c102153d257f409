package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/faceworth/internal/tron"
)

// FaceWorthPollFactory method names.
const (
	MethodCreateFaceWorthPoll     = "createFaceWorthPoll"
	MethodCommit                  = "commit"
	MethodReveal                  = "reveal"
	MethodCheckBlockNumber        = "checkBlockNumber"
	MethodStake                   = "stake"
	MethodGetCurrentStage         = "getCurrentStage"
	MethodGetNumberOfParticipants = "getNumberOfParticipants"
	MethodGetCommitTimeElapsed    = "getCommitTimeElapsed"
	MethodGetRevealTimeElapsed    = "getRevealTimeElapsed"
	MethodGetParticipants         = "getParticipants"
	MethodGetWorthBy              = "getWorthBy"
	MethodGetWinners              = "getWinners"
)

// FaceWorth is a typed binding over the FaceWorthPollFactory gateway.
type FaceWorth struct {
	gw *Gateway
}

// NewFaceWorth wraps gw.
func NewFaceWorth(gw *Gateway) *FaceWorth {
	return &FaceWorth{gw: gw}
}

// Gateway exposes the untyped proxy.
func (f *FaceWorth) Gateway() *Gateway {
	return f.gw
}

// CreateFaceWorthPoll opens a poll for faceHash. It carries no value.
func (f *FaceWorth) CreateFaceWorthPoll(ctx context.Context, faceHash tron.Hash, blocksBeforeReveal, blocksBeforeEnd uint64) (string, error) {
	return f.gw.Send(ctx, MethodCreateFaceWorthPoll, f.gw.DefaultSendOptions(0),
		[32]byte(faceHash), new(big.Int).SetUint64(blocksBeforeReveal), new(big.Int).SetUint64(blocksBeforeEnd))
}

// Commit submits a salted worth hash for poll, paying stake.
func (f *FaceWorth) Commit(ctx context.Context, poll tron.Hash, saltedWorth tron.Hash, stake int64) (string, error) {
	return f.gw.Send(ctx, MethodCommit, f.gw.DefaultSendOptions(stake), [32]byte(poll), [32]byte(saltedWorth))
}

// Reveal discloses the salt and worth committed earlier.
func (f *FaceWorth) Reveal(ctx context.Context, poll tron.Hash, salt string, worth uint8) (string, error) {
	return f.gw.Send(ctx, MethodReveal, f.gw.DefaultSendOptions(0), [32]byte(poll), salt, worth)
}

// CheckBlockNumber lets the contract advance the poll's stage.
func (f *FaceWorth) CheckBlockNumber(ctx context.Context, poll tron.Hash) (string, error) {
	return f.gw.Send(ctx, MethodCheckBlockNumber, f.gw.DefaultSendOptions(0), [32]byte(poll))
}

// Stake returns the value in SUN a participant escrows to commit.
func (f *FaceWorth) Stake(ctx context.Context) (int64, error) {
	v, err := f.callBig(ctx, MethodStake)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("stake %s overflows int64", v)
	}
	return v.Int64(), nil
}

// CurrentStage reads the poll's stage.
func (f *FaceWorth) CurrentStage(ctx context.Context, poll tron.Hash) (Stage, error) {
	out, err := f.gw.Call(ctx, MethodGetCurrentStage, [32]byte(poll))
	if err != nil {
		return NotStarted, err
	}
	v, err := single[uint8](MethodGetCurrentStage, out)
	return Stage(v), err
}

// NumberOfParticipants returns how many participants committed.
func (f *FaceWorth) NumberOfParticipants(ctx context.Context, poll tron.Hash) (uint64, error) {
	v, err := f.callBig(ctx, MethodGetNumberOfParticipants, [32]byte(poll))
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// CommitTimeElapsed reports whether the commit window is over.
func (f *FaceWorth) CommitTimeElapsed(ctx context.Context, poll tron.Hash) (bool, error) {
	out, err := f.gw.Call(ctx, MethodGetCommitTimeElapsed, [32]byte(poll))
	if err != nil {
		return false, err
	}
	return single[bool](MethodGetCommitTimeElapsed, out)
}

// RevealTimeElapsed reports whether the reveal window is over.
func (f *FaceWorth) RevealTimeElapsed(ctx context.Context, poll tron.Hash) (bool, error) {
	out, err := f.gw.Call(ctx, MethodGetRevealTimeElapsed, [32]byte(poll))
	if err != nil {
		return false, err
	}
	return single[bool](MethodGetRevealTimeElapsed, out)
}

// Participants lists the accounts that committed.
func (f *FaceWorth) Participants(ctx context.Context, poll tron.Hash) ([]tron.Address, error) {
	return f.callAddresses(ctx, MethodGetParticipants, poll)
}

// Winners lists the accounts rewarded once the poll ended.
func (f *FaceWorth) Winners(ctx context.Context, poll tron.Hash) ([]tron.Address, error) {
	return f.callAddresses(ctx, MethodGetWinners, poll)
}

// WorthBy returns the worth revealed by participant.
func (f *FaceWorth) WorthBy(ctx context.Context, poll tron.Hash, participant tron.Address) (uint8, error) {
	out, err := f.gw.Call(ctx, MethodGetWorthBy, [32]byte(poll), participant.EVM())
	if err != nil {
		return 0, err
	}
	return single[uint8](MethodGetWorthBy, out)
}

func (f *FaceWorth) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := f.gw.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return single[*big.Int](method, out)
}

func (f *FaceWorth) callAddresses(ctx context.Context, method string, poll tron.Hash) ([]tron.Address, error) {
	out, err := f.gw.Call(ctx, method, [32]byte(poll))
	if err != nil {
		return nil, err
	}
	raw, err := single[[]common.Address](method, out)
	if err != nil {
		return nil, err
	}
	addrs := make([]tron.Address, len(raw))
	for i, a := range raw {
		addrs[i] = tron.AddressFromEVM(a)
	}
	return addrs, nil
}

func single[T any](method string, out []any) (T, error) {
	var zero T
	if len(out) != 1 {
		return zero, fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return v, nil
}
