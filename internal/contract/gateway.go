package contract

import (
	"context"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/lox/faceworth/internal/tron"
)

// DefaultFeeLimit is the energy fee ceiling, in SUN, attached to every write.
const DefaultFeeLimit int64 = 1_000_000_000

//go:embed abi/FaceWorthPollFactory.json
var faceWorthABI string

// ErrUnknownMethod is returned when a method is not part of the ABI.
var ErrUnknownMethod = errors.New("unknown contract method")

// FaceWorthABI parses the embedded FaceWorthPollFactory ABI.
func FaceWorthABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(faceWorthABI))
}

// Node is the part of the chain client the gateway needs.
type Node interface {
	TriggerConstant(ctx context.Context, req tron.TriggerRequest) ([]byte, error)
	TriggerSmartContract(ctx context.Context, req tron.TriggerRequest) (*tron.Transaction, error)
	Broadcast(ctx context.Context, tx *tron.Transaction) (string, error)
}

// Account supplies the caller identity and signatures for writes.
type Account interface {
	DefaultAddress() tron.Address
	SignTransaction(ctx context.Context, tx *tron.Transaction) error
}

// SendOptions control a fee-bearing write.
type SendOptions struct {
	FeeLimit  int64
	CallValue int64
}

// Gateway is a callable proxy for one deployed contract: every ABI method is
// reachable as a free read (Call) or a signed write (Send).
type Gateway struct {
	node     Node
	account  Account
	abi      abi.ABI
	address  tron.Address
	feeLimit int64
	logger   *log.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithFeeLimit overrides DefaultFeeLimit for every write made by the gateway.
func WithFeeLimit(sun int64) GatewayOption {
	return func(g *Gateway) {
		if sun > 0 {
			g.feeLimit = sun
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *log.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger.WithPrefix("contract")
	}
}

// NewGateway binds parsed to the contract deployed at address.
func NewGateway(node Node, account Account, parsed abi.ABI, address tron.Address, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		node:     node,
		account:  account,
		abi:      parsed,
		address:  address,
		feeLimit: DefaultFeeLimit,
		logger:   log.Default().WithPrefix("contract"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Address returns the bound contract address.
func (g *Gateway) Address() tron.Address {
	return g.address
}

// DefaultSendOptions returns the fixed fee ceiling with the given call value.
func (g *Gateway) DefaultSendOptions(callValue int64) SendOptions {
	return SendOptions{FeeLimit: g.feeLimit, CallValue: callValue}
}

// Call performs a read-only invocation and returns the unpacked outputs.
func (g *Gateway) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	method, params, err := g.pack(name, args...)
	if err != nil {
		return nil, err
	}

	out, err := g.node.TriggerConstant(ctx, tron.TriggerRequest{
		OwnerAddress:     g.account.DefaultAddress(),
		ContractAddress:  g.address,
		FunctionSelector: method.Sig,
		Parameter:        hex.EncodeToString(params),
	})
	if err != nil {
		return nil, err
	}

	values, err := method.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return values, nil
}

// Send builds, signs and broadcasts a write and returns the transaction id.
func (g *Gateway) Send(ctx context.Context, name string, opts SendOptions, args ...any) (string, error) {
	method, params, err := g.pack(name, args...)
	if err != nil {
		return "", err
	}
	if opts.FeeLimit <= 0 {
		opts.FeeLimit = g.feeLimit
	}

	tx, err := g.node.TriggerSmartContract(ctx, tron.TriggerRequest{
		OwnerAddress:     g.account.DefaultAddress(),
		ContractAddress:  g.address,
		FunctionSelector: method.Sig,
		Parameter:        hex.EncodeToString(params),
		FeeLimit:         opts.FeeLimit,
		CallValue:        opts.CallValue,
	})
	if err != nil {
		return "", err
	}

	if err := g.account.SignTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("sign %s: %w", name, err)
	}

	txid, err := g.node.Broadcast(ctx, tx)
	if err != nil {
		return "", err
	}

	g.logger.Info("Sent transaction", "method", name, "txid", txid, "callValue", opts.CallValue)
	return txid, nil
}

func (g *Gateway) pack(name string, args ...any) (abi.Method, []byte, error) {
	method, ok := g.abi.Methods[name]
	if !ok {
		return abi.Method{}, nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	params, err := method.Inputs.Pack(args...)
	if err != nil {
		return abi.Method{}, nil, fmt.Errorf("pack %s: %w", name, err)
	}
	return method, params, nil
}
