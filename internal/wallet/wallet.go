package wallet

import (
	"context"
	"errors"

	"github.com/lox/faceworth/internal/tron"
)

var (
	// ErrNotInstalled is returned by a Probe when no wallet is reachable.
	ErrNotInstalled = errors.New("wallet not installed")
	// ErrReadOnly is returned when a write needs a signature but no logged in
	// wallet is available.
	ErrReadOnly = errors.New("read-only session: no logged in wallet")
)

// Status describes wallet availability as seen by the client.
type Status struct {
	Installed bool
	LoggedIn  bool
}

// Wallet is an account provider able to sign transactions.
type Wallet interface {
	// Ready reports whether an account is unlocked.
	Ready() bool
	Address() tron.Address
	// Endpoint is the node the wallet is attached to, or "" for the
	// configured default.
	Endpoint() string
	SignTransaction(ctx context.Context, tx *tron.Transaction) error
	// OnAddressChanged registers fn for account switches and returns a
	// function that removes it.
	OnAddressChanged(fn func(tron.Address)) (cancel func())
	Close() error
}

// Probe looks for a wallet once. It returns ErrNotInstalled (possibly
// wrapped) when none is available yet.
type Probe func(ctx context.Context) (Wallet, error)

// FirstOf combines probes, returning the first wallet found. A probe that
// fails for a reason other than ErrNotInstalled does not stop later probes;
// its error is returned only when no probe finds a wallet.
func FirstOf(probes ...Probe) Probe {
	return func(ctx context.Context) (Wallet, error) {
		var errs []error
		for _, p := range probes {
			w, err := p(ctx)
			if err == nil && w != nil {
				return w, nil
			}
			if err != nil && !errors.Is(err, ErrNotInstalled) {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNotInstalled
	}
}
