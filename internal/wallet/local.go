package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lox/faceworth/internal/tron"
)

// LocalWallet signs with a private key held in memory.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address tron.Address
}

// NewLocalWallet loads a hex encoded secp256k1 private key.
func NewLocalWallet(hexKey string) (*LocalWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalWallet{
		key:     key,
		address: tron.AddressFromEVM(crypto.PubkeyToAddress(key.PublicKey)),
	}, nil
}

// LocalProbe finds a LocalWallet when hexKey is set.
func LocalProbe(hexKey string) Probe {
	return func(context.Context) (Wallet, error) {
		if strings.TrimSpace(hexKey) == "" {
			return nil, ErrNotInstalled
		}
		w, err := NewLocalWallet(hexKey)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

func (w *LocalWallet) Ready() bool           { return true }
func (w *LocalWallet) Address() tron.Address { return w.address }
func (w *LocalWallet) Endpoint() string      { return "" }
func (w *LocalWallet) Close() error          { return nil }

// OnAddressChanged never fires: the key is fixed for the wallet's lifetime.
func (w *LocalWallet) OnAddressChanged(func(tron.Address)) func() {
	return func() {}
}

// SignTransaction attaches a recoverable signature over the transaction id.
func (w *LocalWallet) SignTransaction(_ context.Context, tx *tron.Transaction) error {
	digest, err := tx.Digest()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return fmt.Errorf("sign %s: %w", tx.TxID, err)
	}
	// TronWeb encodes the recovery id as 27/28.
	sig[64] += 27
	tx.AddSignature(sig)
	return nil
}
