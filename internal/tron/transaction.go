package tron

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SunPerTRX is the number of SUN in one TRX.
const SunPerTRX = 1_000_000

// Transaction is an unsigned or signed transaction as returned by the node's
// trigger endpoints and accepted by broadcasttransaction.
type Transaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
	Visible    bool            `json:"visible"`
}

// Digest returns the bytes a signer must sign: sha256 of the raw data. It
// fails when the node-supplied txID disagrees with the raw data.
func (tx *Transaction) Digest() ([]byte, error) {
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid raw_data_hex: %w", err)
	}
	sum := sha256.Sum256(raw)
	if tx.TxID != "" && !strings.EqualFold(tx.TxID, hex.EncodeToString(sum[:])) {
		return nil, fmt.Errorf("txID %s does not match raw data", tx.TxID)
	}
	return sum[:], nil
}

// AddSignature appends a 65 byte recoverable signature.
func (tx *Transaction) AddSignature(sig []byte) {
	tx.Signature = append(tx.Signature, hex.EncodeToString(sig))
}

// Signed reports whether at least one signature is attached.
func (tx *Transaction) Signed() bool {
	return len(tx.Signature) > 0
}
